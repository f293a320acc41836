package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// IMAPConfig configures the IMAP mail store.
type IMAPConfig struct {
	// Addr is the server host:port.
	Addr string

	Username string
	Password string

	// Mailbox is the folder to manage.
	// Default: "INBOX"
	Mailbox string

	// TLS dials with implicit TLS (port 993).
	TLS bool

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool

	// Timeout bounds dialing, the greeting and each command.
	// Default: 30s
	Timeout time.Duration
}

// IMAPStore is a MailStore backed by one IMAP folder. Categories are not
// stored on the server; they are computed from message envelopes with the
// Categorizer and cached per UID. Body rules never match because bodies
// are not fetched.
//
// go-imap clients are not safe for concurrent commands, so every call holds
// the store mutex. A command still running when its context is done has its
// connection terminated; the next call reconnects.
type IMAPStore struct {
	config      IMAPConfig
	categorizer Categorizer
	logger      *slog.Logger

	mu          sync.Mutex
	client      *client.Client
	uidValidity uint32
	meta        map[uint32]mailbox.Message
}

// NewIMAPStore creates an IMAP store. The connection is opened lazily.
func NewIMAPStore(config IMAPConfig, categorizer Categorizer) (*IMAPStore, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("imap address cannot be empty")
	}
	if categorizer == nil {
		return nil, fmt.Errorf("imap store requires a categorizer")
	}
	if config.Mailbox == "" {
		config.Mailbox = "INBOX"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &IMAPStore{
		config:      config,
		categorizer: categorizer,
		logger:      slog.Default().With("component", "mailbox.store.imap"),
		meta:        make(map[uint32]mailbox.Message),
	}, nil
}

// conn returns a logged-in client with the mailbox selected. Callers hold
// s.mu.
func (s *IMAPStore) conn(ctx context.Context) (*client.Client, *imap.MailboxStatus, error) {
	if s.client == nil {
		c, err := s.dial(ctx)
		if err != nil {
			return nil, nil, mailbox.NewStoreError("imap", "dial", err)
		}
		err = s.exec(ctx, c, func() error {
			return c.Login(s.config.Username, s.config.Password)
		})
		if err != nil {
			c.Terminate()
			return nil, nil, mailbox.NewStoreError("imap", "login", err)
		}
		s.client = c
		s.logger.Info("connected to IMAP server", "addr", s.config.Addr, "mailbox", s.config.Mailbox)
	}

	c := s.client
	var status *imap.MailboxStatus
	err := s.exec(ctx, c, func() (err error) {
		status, err = c.Select(s.config.Mailbox, false)
		return err
	})
	if err != nil {
		s.reset()
		return nil, nil, mailbox.NewStoreError("imap", "select", err)
	}
	if status.UidValidity != s.uidValidity {
		s.uidValidity = status.UidValidity
		s.meta = make(map[uint32]mailbox.Message)
	}
	return c, status, nil
}

// dial connects and waits for the server greeting, giving up at the
// configured timeout or when ctx is done.
func (s *IMAPStore) dial(ctx context.Context) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: s.config.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.config.TLS {
		host, _, _ := net.SplitHostPort(s.config.Addr)
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: s.config.InsecureSkipVerify,
				MinVersion:         tls.VersionTLS12,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", s.config.Addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.config.Addr)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(s.config.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	c, err := client.New(conn)
	if !stop() {
		if c != nil {
			c.Terminate()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("greeting: %w", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Terminate()
		return nil, err
	}
	c.Timeout = s.config.Timeout
	return c, nil
}

// exec runs one command on c, terminating the connection if ctx is done
// before it completes. Callers hold s.mu.
func (s *IMAPStore) exec(ctx context.Context, c *client.Client, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { c.Terminate() })
	err := fn()
	if !stop() {
		if s.client == c {
			s.client = nil
		}
		return ctx.Err()
	}
	return err
}

// reset drops the connection after a failed command. The server may not be
// answering, so the socket is closed without a LOGOUT exchange.
func (s *IMAPStore) reset() {
	if s.client != nil {
		s.client.Terminate()
		s.client = nil
	}
}

// Count implements mailbox.MailStore.
func (s *IMAPStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, status, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	return int64(status.Messages), nil
}

// OldestTimestamp implements mailbox.MailStore. Sequence number 1 is the
// oldest arrival in the folder.
func (s *IMAPStore) OldestTimestamp(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, status, err := s.conn(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if status.Messages == 0 {
		return time.Time{}, nil
	}

	seq := new(imap.SeqSet)
	seq.AddNum(1)
	var oldest time.Time
	err = s.exec(ctx, c, func() error {
		return collect(func(ch chan *imap.Message) error {
			return c.Fetch(seq, []imap.FetchItem{imap.FetchInternalDate}, ch)
		}, func(m *imap.Message) {
			oldest = m.InternalDate.UTC()
		})
	})
	if err != nil {
		s.reset()
		return time.Time{}, mailbox.NewStoreError("imap", "oldest", err)
	}
	return oldest, nil
}

// ListByCategoryBefore implements mailbox.MailStore. IMAP BEFORE has day
// granularity, so the search is widened by a day and filtered exactly.
func (s *IMAPStore) ListByCategoryBefore(ctx context.Context, category string, cutoff time.Time, pageSize int, pageToken string) ([]mailbox.Message, string, error) {
	if pageSize <= 0 {
		return nil, "", fmt.Errorf("page size must be positive")
	}
	after, hasAfter, err := decodeCursor(pageToken)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.conn(ctx)
	if err != nil {
		return nil, "", err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Before = cutoff.AddDate(0, 0, 1)
	var uids []uint32
	err = s.exec(ctx, c, func() (err error) {
		uids, err = c.UidSearch(criteria)
		return err
	})
	if err != nil {
		s.reset()
		return nil, "", mailbox.NewStoreError("imap", "search", err)
	}

	if err := s.exec(ctx, c, func() error { return s.fetchMissing(c, uids) }); err != nil {
		s.reset()
		return nil, "", mailbox.NewStoreError("imap", "fetch", err)
	}

	var candidates []mailbox.Message
	for _, uid := range uids {
		m, ok := s.meta[uid]
		if !ok || m.Category != category || !m.Timestamp.Before(cutoff) {
			continue
		}
		if hasAfter && !after.after(m.Timestamp, m.ID) {
			continue
		}
		candidates = append(candidates, m)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Timestamp.Equal(candidates[j].Timestamp) {
			return candidates[i].Timestamp.Before(candidates[j].Timestamp)
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) <= pageSize {
		return candidates, "", nil
	}
	page := candidates[:pageSize]
	last := page[pageSize-1]
	return page, cursor{ts: last.Timestamp, id: last.ID}.encode(), nil
}

// fetchMissing loads envelopes for UIDs not yet in the cache and
// categorizes them.
func (s *IMAPStore) fetchMissing(c *client.Client, uids []uint32) error {
	missing := new(imap.SeqSet)
	n := 0
	for _, uid := range uids {
		if _, ok := s.meta[uid]; !ok {
			missing.AddNum(uid)
			n++
		}
	}
	if n == 0 {
		return nil
	}

	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchRFC822Size}
	return collect(func(ch chan *imap.Message) error {
		return c.UidFetch(missing, items, ch)
	}, func(m *imap.Message) {
		msg := mailbox.Message{
			ID:        strconv.FormatUint(uint64(m.Uid), 10),
			Timestamp: m.InternalDate.UTC(),
			SizeBytes: int64(m.Size),
		}
		if m.Envelope != nil {
			msg.Subject = m.Envelope.Subject
			if len(m.Envelope.From) > 0 {
				msg.Sender = m.Envelope.From[0].Address()
			}
		}
		msg.Category = s.categorizer.Categorize(msg)
		s.meta[m.Uid] = msg
	})
}

// Size implements mailbox.MailStore.
func (s *IMAPStore) Size(ctx context.Context, id string) (int64, error) {
	uid, err := parseUID(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.meta[uid]; ok {
		return m.SizeBytes, nil
	}

	c, _, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	set := new(imap.SeqSet)
	set.AddNum(uid)

	var (
		size  int64
		found bool
	)
	err = s.exec(ctx, c, func() error {
		return collect(func(ch chan *imap.Message) error {
			return c.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchRFC822Size}, ch)
		}, func(m *imap.Message) {
			size, found = int64(m.Size), true
		})
	})
	if err != nil {
		s.reset()
		return 0, mailbox.NewStoreError("imap", "size", err)
	}
	if !found {
		return 0, fmt.Errorf("message %q not found", id)
	}
	return size, nil
}

// Delete implements mailbox.MailStore. The message is flagged \Deleted and
// expunged with UID EXPUNGE when the server supports UIDPLUS. Otherwise the
// whole folder is expunged, which also removes messages other clients have
// flagged.
func (s *IMAPStore) Delete(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.conn(ctx)
	if err != nil {
		return err
	}

	set := new(imap.SeqSet)
	set.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	err = s.exec(ctx, c, func() error {
		return c.UidStore(set, item, []interface{}{imap.DeletedFlag}, nil)
	})
	if err != nil {
		s.reset()
		return mailbox.NewStoreError("imap", "store_deleted_flag", err)
	}
	if err := s.exec(ctx, c, func() error { return expunge(c, set) }); err != nil {
		s.reset()
		return mailbox.NewStoreError("imap", "expunge", err)
	}
	delete(s.meta, uid)
	return nil
}

// Ping implements mailbox.Pinger.
func (s *IMAPStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := s.exec(ctx, c, c.Noop); err != nil {
		s.reset()
		return mailbox.NewStoreError("imap", "noop", err)
	}
	return nil
}

// Close logs out. LOGOUT is bounded by the command timeout.
func (s *IMAPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if err := s.client.Logout(); err != nil {
			s.client.Terminate()
		}
		s.client = nil
	}
	return nil
}

// expunge removes the messages in set, which must already be flagged
// \Deleted.
func expunge(c *client.Client, set *imap.SeqSet) error {
	ok, err := c.Support("UIDPLUS")
	if err != nil {
		return err
	}
	if !ok {
		return c.Expunge(nil)
	}
	status, err := c.Execute(&uidExpunge{set: set}, nil)
	if err != nil {
		return err
	}
	return status.Err()
}

// uidExpunge is the RFC 4315 UID EXPUNGE command.
type uidExpunge struct {
	set *imap.SeqSet
}

func (cmd *uidExpunge) Command() *imap.Command {
	return &imap.Command{
		Name:      "UID",
		Arguments: []interface{}{imap.RawString("EXPUNGE"), cmd.set},
	}
}

// collect runs a fetch command and hands each message to fn.
func collect(fetch func(ch chan *imap.Message) error, fn func(*imap.Message)) error {
	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- fetch(ch)
	}()
	for m := range ch {
		if m != nil {
			fn(m)
		}
	}
	return <-done
}

func parseUID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}
	return uint32(n), nil
}
