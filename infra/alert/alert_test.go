package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/nikoksr/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	subjects []string
	bodies   []string
	err      error
}

func (r *recorder) Send(_ context.Context, subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return r.err
}

func TestMailerAnnounce(t *testing.T) {
	rec := &recorder{}
	m := newMailer(func() []notify.Notifier { return []notify.Notifier{rec} }, nil)

	require.NoError(t, m.Announce(context.Background(), "Wildlife alert: elephant", "Keep clear of the area."))
	assert.Equal(t, []string{"Wildlife alert: elephant"}, rec.subjects)
	assert.Equal(t, []string{"Keep clear of the area."}, rec.bodies)
}

func TestMailerAnnounceError(t *testing.T) {
	rec := &recorder{err: errors.New("smtp down")}
	m := newMailer(func() []notify.Notifier { return []notify.Notifier{rec} }, nil)

	err := m.Announce(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestConfig(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.NoError(t, Config{}.Validate())

	c := Config{SMTPHost: "smtp.example.org", Recipients: []string{"ops@example.org"}}
	assert.True(t, c.Enabled())
	assert.Error(t, c.Validate(), "missing from")

	c.From = "wildguard@example.org"
	assert.NoError(t, c.Validate())
	m, err := NewMailer(c, nil)
	require.NoError(t, err)
	assert.Len(t, m.services(), 1)

	c.Recipients = []string{"not-an-address"}
	_, err = NewMailer(c, nil)
	assert.Error(t, err)
}
