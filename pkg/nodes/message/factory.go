package message

import "github.com/atlasfit/automation/pkg/protocol"

// EmailFactory creates email node instances bound to a messenger.
type EmailFactory struct {
	messenger protocol.Messenger
}

func NewEmailFactory(messenger protocol.Messenger) *EmailFactory {
	return &EmailFactory{messenger: messenger}
}

func (*EmailFactory) ID() string {
	return "email"
}

func (f *EmailFactory) Create(config map[string]any) (protocol.Node, error) {
	return NewEmailNode(config, f.messenger)
}

// SMSFactory creates SMS node instances bound to a messenger.
type SMSFactory struct {
	messenger protocol.Messenger
}

func NewSMSFactory(messenger protocol.Messenger) *SMSFactory {
	return &SMSFactory{messenger: messenger}
}

func (*SMSFactory) ID() string {
	return "sms"
}

func (f *SMSFactory) Create(config map[string]any) (protocol.Node, error) {
	return NewSMSNode(config, f.messenger)
}
