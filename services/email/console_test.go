package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/list"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ana", Address: "ana@test.cd"}},
			Subject:      "Bob shared a list with you",
			TemplateName: "list_shared",
			TemplateData: list.ShareNotice{
				OrganizationID: "org1",
				ListID:         "list1",
				ListName:       "Watch",
				OwnerName:      "Bob",
				GranteeName:    "Ana",
			},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.cd"}}, Subject: "plain", BodyStr: "hello"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	shared := sent[0]
	assert.Contains(t, shared.TextContent, `Bob shared the list "Watch" with you.`)
	assert.Contains(t, shared.TextContent, conf.FrontendBaseURL+"/organizations/org1/lists/list1")
	assert.True(t, strings.Contains(shared.HTMLContent, "Watch"))

	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
}
