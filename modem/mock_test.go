package modem_test

import (
	"io"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/fwril/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) reply(cmd, resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd+"\r")).Return(len(cmd)+1, nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

// AT is a probe that the modem answers with OK.
func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.reply("AT", "\r\nOK\r\n")
}

// EchoedAT is a probe answered while echo is still on.
func (b *MockSequenceBuilder) EchoedAT() *MockSequenceBuilder {
	return b.reply("AT", "AT\r\nOK\r\n")
}

// Idle blocks the reader until release is closed, then reports EOF. The
// reader may not get there before the test ends, so the read is optional.
func (b *MockSequenceBuilder) Idle(release <-chan struct{}) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-release
			return 0, io.EOF
		}).MaxTimes(1),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
