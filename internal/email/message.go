// Package email defines the outbound message model shared by the composer
// and the delivery providers.
package email

// Fields is the structured input to message composition.
// Only To is validated; Cc and Bcc are passed through as given.
type Fields struct {
	To      []string `yaml:"to" json:"to" validate:"dive,mailbox"`
	Cc      []string `yaml:"cc,omitempty" json:"cc,omitempty"`
	Bcc     []string `yaml:"bcc,omitempty" json:"bcc,omitempty"`
	Subject string   `yaml:"subject" json:"subject"`
	Body    string   `yaml:"body" json:"body"`
}

// Message is a composed message ready for delivery. Raw holds the CRLF
// delimited transport form built from Fields.
type Message struct {
	Fields
	Raw string
}

// Recipients returns every envelope recipient in To, Cc, Bcc order.
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}
