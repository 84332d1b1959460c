package mailer

import (
	"bytes"
	"fmt"
	"text/template"
)

var (
	confirmTmpl = template.Must(template.New("confirm").Parse(`Hello {{if .FirstName}}{{.FirstName}}{{else}}there{{end}},

Confirm your email address with this token:

    {{.Token}}

Or open {{.BaseURL}}/api/v1/user/register/confirm and submit it together with {{.Email}}.
`))

	orderTmpl = template.Must(template.New("order").Parse(`Your order {{.OrderID}} is now "{{.State}}".
{{if .Total}}Order total: {{.Total}}
{{end}}`))

	importTmpl = template.Must(template.New("import").Parse(`Price list import for {{.Shop}} finished.
Created: {{.Created}}, updated: {{.Updated}}, failed: {{.Failed}}, zeroed: {{.Stale}}.
`))
)

type ConfirmData struct {
	Email     string
	FirstName string
	Token     string
	BaseURL   string
}

type OrderData struct {
	OrderID string
	State   string
	Total   string
}

type ImportData struct {
	Shop    string
	Created int
	Updated int
	Failed  int
	Stale   int
}

func ConfirmEmail(to string, data ConfirmData) (Message, error) {
	body, err := render(confirmTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Confirm your email", Body: body}, nil
}

func OrderStatus(to string, data OrderData) (Message, error) {
	body, err := render(orderTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("Order %s: %s", data.OrderID, data.State), Body: body}, nil
}

func ImportReport(to string, data ImportData) (Message, error) {
	body, err := render(importTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Price list import: " + data.Shop, Body: body}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}
