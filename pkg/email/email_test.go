package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/i18n"
)

func TestRenderLead(t *testing.T) {
	require.NoError(t, i18n.LoadEmbedded())

	id := int64(5)
	lead := &models.Lead{
		Name:       "Olim <script>",
		Phone:      "+998901112233",
		Message:    "line1\nline2",
		PropertyID: &id,
		Locale:     "ru",
	}

	subject, body := RenderLead(lead, "https://uyjoy.uz/ru/properties/5", i18n.NewLocalizer("en"))

	assert.Contains(t, subject, "Olim <script>", "subject is plain text")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "Olim &lt;script&gt;")
	assert.Contains(t, body, `<a href="https://uyjoy.uz/ru/properties/5">#5</a>`)
	assert.Contains(t, body, "line1<br>line2")
	assert.Contains(t, body, `href="tel:+998901112233"`)
}

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.uz", "b@x.uz"}, splitRecipients(" a@x.uz, ,b@x.uz "))
	assert.Nil(t, splitRecipients(""))
}
