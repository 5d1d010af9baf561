package notify

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-xmpp"
	log "github.com/sirupsen/logrus"
)

// Xmpp delivers race and pipeline events as chat messages. Delivery is
// best-effort: a failed send is logged and dropped, never surfaced to the
// simulation.
type Xmpp struct {
	Host     string
	Jid      string
	Password string
	Reclist  []string

	mu sync.Mutex
}

// Enabled reports whether the notifier has enough config to send anything.
func (x *Xmpp) Enabled() bool {
	return len(x.Jid) > 0 && len(x.Password) > 0 && len(x.Reclist) > 0
}

func serverName(jid string) string {
	parts := strings.Split(jid, "@")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Eventf formats and sends one event to every recipient.
func (x *Xmpp) Eventf(format string, args ...interface{}) {
	if !x.Enabled() {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	message := fmt.Sprintf(format, args...)
	if err := x.send(message); err != nil {
		log.WithError(err).Errorf("Failed to send notification '%s'", message)
	}
}

func (x *Xmpp) send(message string) error {
	host := x.Host
	if len(host) == 0 {
		host = serverName(x.Jid)
	}

	xmpp.DefaultConfig = tls.Config{
		InsecureSkipVerify: true,
	}

	options := xmpp.Options{
		Host:     host,
		User:     x.Jid,
		Password: x.Password,
		NoTLS:    true,
		StartTLS: true,
		Session:  false,
		Status:   "xa",
	}

	talk, err := options.NewClient()
	if err != nil {
		return err
	}
	defer talk.Close()

	for _, to := range x.Reclist {
		if _, err := talk.Send(xmpp.Chat{Remote: to, Type: "chat", Text: message}); err != nil {
			return err
		}
	}
	return nil
}
