package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/tests"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Royal Academy",
		DefaultFromEmail: mail.Address{Name: "Royal Academy", Address: "noreply@royalacademy.local"},
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig(), testutil.NewLogger(t))

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada Lovelace", Address: "ada@example.com"}},
			Subject:      "Application received",
			TemplateName: "admission_confirmation",
			TemplateData: map[string]interface{}{
				"FirstName": "Ada", "LastName": "Lovelace",
				"Program": "Sciences", "Level": "Grade 10", "Term": "Fall",
				"ID": "0190a2b4", "Paid": true, "Plan": "yearly", "Amount": "50000.00", "Method": "stripe", "Documents": 0,
			},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@example.com"}}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Contains(t, msg.TextContent, "Dear Ada Lovelace,")
	assert.Contains(t, msg.TextContent, "Subscription: yearly - 50000.00 paid via stripe.")
	assert.Contains(t, msg.TextContent, "Royal Academy Admissions Office")
	assert.Contains(t, msg.HTMLContent, "<strong>Sciences</strong>")
}

func TestConsoleServiceMock_RenderError(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig(), testutil.NewLogger(t))

	// missing keys are errors
	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "ada@example.com"}},
		TemplateName: "admission_confirmation",
		TemplateData: map[string]interface{}{"FirstName": "Ada"},
	})
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_format(t *testing.T) {
	out := new(bytes.Buffer)
	svc := NewConsoleService(testConfig(), testutil.NewLogger(t))
	svc.out = out

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject: "Hello",
		BodyStr: "plain body",
	}
	require.NoError(t, msg.Attach(strings.NewReader("receipt"), "receipt.txt", "text/plain"))
	svc.sendMessage(msg)

	body := out.String()
	assert.Contains(t, body, `From: "Royal Academy" <noreply@royalacademy.local>`)
	assert.Contains(t, body, "Subject: [Royal Academy] Hello")
	assert.Contains(t, body, `To: "Ada" <ada@example.com>`)
	assert.Contains(t, body, "Content-Type: multipart/mixed")
	assert.Contains(t, body, "plain body")
	assert.Contains(t, body, "filename=receipt.txt")
}

func TestNewService(t *testing.T) {
	conf := testConfig()
	conf.Debug = true
	conf.SendgridApiKey = "key"
	assert.IsType(t, &ConsoleService{}, NewService(conf, testutil.NewLogger(t)))

	conf.Debug = false
	assert.IsType(t, &SendgridService{}, NewService(conf, testutil.NewLogger(t)))

	conf.SendgridApiKey = ""
	assert.IsType(t, &ConsoleService{}, NewService(conf, testutil.NewLogger(t)))
}

func TestSendgridService_prepare(t *testing.T) {
	conf := testConfig()
	conf.SendgridApiKey = "key"
	svc := NewSendgridService(conf, testutil.NewLogger(t))

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Bcc:         []mail.Address{{Address: "audit@royalacademy.local"}},
		Subject:     "Hello",
		TextContent: "hi",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Royal Academy] Hello", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].BCC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
