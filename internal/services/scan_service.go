package services

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

var (
	// ErrIMAPConnectionFailed indicates the IMAP connection failed
	ErrIMAPConnectionFailed = errors.New("IMAP connection failed")
	// ErrAccountDisabled indicates the account is disabled
	ErrAccountDisabled = errors.New("account is disabled")
)

// OAuthClientConfig holds the OAuth client used to refresh mailbox
// access tokens
type OAuthClientConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// ScanService fetches order emails over IMAP and feeds them through the
// ingestion pipeline one message at a time per account.
type ScanService struct {
	db             *gorm.DB
	accountService *AccountService
	pipeline       *ingest.Pipeline
	logService     *LogService
	storage        *storage.Manager
	oauth          OAuthClientConfig
	defaultDays    int
}

// NewScanService creates a new ScanService. defaultDays is the scan
// window applied to accounts that have never been scanned and carry no
// window of their own.
func NewScanService(db *gorm.DB, accountService *AccountService, pipeline *ingest.Pipeline,
	logService *LogService, store *storage.Manager, oauth OAuthClientConfig, defaultDays int) *ScanService {
	return &ScanService{
		db:             db,
		accountService: accountService,
		pipeline:       pipeline,
		logService:     logService,
		storage:        store,
		oauth:          oauth,
		defaultDays:    defaultDays,
	}
}

// connectIMAP dials and authenticates an IMAP session for the account
func (s *ScanService) connectIMAP(account *models.EmailAccount) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var c *client.Client
	if account.UseSSL {
		tlsConfig := &tls.Config{ServerName: account.IMAPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
	}

	c.Timeout = 5 * time.Minute

	// Some providers require client identification before login.
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "retail-order-cancellation-tracker",
			id.FieldVersion: "1.0.0",
		})
	}

	if account.AuthType == string(models.AuthTypeOAuth2) {
		accessToken, _, err := s.accountService.GetDecryptedOAuthTokens(account)
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: failed to get OAuth tokens: %v", ErrIMAPConnectionFailed, err)
		}
		if account.OAuthTokenExpiry.Before(time.Now()) {
			accessToken, err = s.refreshOAuthToken(account)
			if err != nil {
				c.Logout()
				return nil, fmt.Errorf("%w: failed to refresh OAuth token: %v", ErrIMAPConnectionFailed, err)
			}
		}
		saslClient := NewXOAuth2Client(account.Username, accessToken)
		if err := c.Authenticate(saslClient); err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: XOAUTH2 authentication failed: %v", ErrIMAPConnectionFailed, err)
		}
	} else {
		password, err := s.accountService.GetDecryptedPassword(account)
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
		if err := c.Login(account.Username, password); err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: login failed: %v", ErrIMAPConnectionFailed, err)
		}
	}

	return c, nil
}

// XOAuth2Client implements the SASL XOAUTH2 mechanism
type XOAuth2Client struct {
	Username    string
	AccessToken string
}

// NewXOAuth2Client creates a new XOAUTH2 SASL client
func NewXOAuth2Client(username, accessToken string) *XOAuth2Client {
	return &XOAuth2Client{Username: username, AccessToken: accessToken}
}

// Start begins the XOAUTH2 exchange
func (c *XOAuth2Client) Start() (mech string, ir []byte, err error) {
	mech = "XOAUTH2"
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.Username, c.AccessToken))
	return
}

// Next handles a server challenge; XOAUTH2 failures arrive as a JSON
// challenge that just needs an empty response before the server fails
// the authentication.
func (c *XOAuth2Client) Next(challenge []byte) (response []byte, err error) {
	return []byte{}, nil
}

// refreshOAuthToken refreshes the account's access token using the
// stored refresh token and persists the new pair.
func (s *ScanService) refreshOAuthToken(account *models.EmailAccount) (string, error) {
	_, refreshToken, err := s.accountService.GetDecryptedOAuthTokens(account)
	if err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", errors.New("no refresh token stored")
	}
	if account.OAuthProvider != "google" {
		return "", fmt.Errorf("unsupported OAuth provider: %s", account.OAuthProvider)
	}
	if s.oauth.GoogleClientID == "" || s.oauth.GoogleClientSecret == "" {
		return "", errors.New("google OAuth client is not configured")
	}

	conf := &oauth2.Config{
		ClientID:     s.oauth.GoogleClientID,
		ClientSecret: s.oauth.GoogleClientSecret,
		RedirectURL:  s.oauth.GoogleRedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://mail.google.com/"},
	}
	src := conf.TokenSource(oauth2.NoContext, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	if err := s.accountService.SetOAuthTokens(account, account.OAuthProvider,
		token.AccessToken, newRefresh, token.Expiry); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// searchSince resolves the SINCE cutoff for a scan. ok is false when
// the whole mailbox should be searched.
func (s *ScanService) searchSince(account *models.EmailAccount, days int, now time.Time) (since time.Time, ok bool) {
	if days == 0 {
		days = account.ScanDays
	}
	switch {
	case days > 0:
		return dayStart(now.AddDate(0, 0, -days)), true
	case days < 0:
		return time.Time{}, false
	}
	if !account.LastScanAt.IsZero() {
		// Overlap one day so messages that raced the previous scan
		// are still picked up; the seen-set absorbs the repeats.
		return dayStart(account.LastScanAt.AddDate(0, 0, -1)), true
	}
	// Never-scanned account with no window of its own: use the
	// configured default rather than pulling the entire mailbox.
	if s.defaultDays > 0 {
		return dayStart(now.AddDate(0, 0, -s.defaultDays)), true
	}
	return time.Time{}, false
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ScanAccount scans one account's inbox over the given day window and
// ingests every message found. days semantics: -1 scans the whole
// mailbox, 0 scans incrementally since the last scan (falling back to
// the account's window, then the configured default, on first run),
// >0 scans that many days back.
func (s *ScanService) ScanAccount(accountID uint, days int) (*ingest.ScanSummary, error) {
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}
	if !account.Enabled {
		return nil, ErrAccountDisabled
	}

	c, err := s.connectIMAP(account)
	if err != nil {
		s.logService.LogError(models.LogModuleScan, "connect", "IMAP connection failed", map[string]interface{}{
			"account_id": accountID,
			"error":      err.Error(),
		})
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %v", err)
	}

	summary := &ingest.ScanSummary{}
	if mbox.Messages == 0 {
		return summary, nil
	}

	criteria := imap.NewSearchCriteria()
	if since, ok := s.searchSince(account, days, time.Now()); ok {
		criteria.Since = since
	}

	seqNums, err := c.Search(criteria)
	if err != nil || len(seqNums) == 0 {
		seqNums = make([]uint32, mbox.Messages)
		for i := uint32(1); i <= mbox.Messages; i++ {
			seqNums[i-1] = i
		}
	}

	s.logService.LogInfo(models.LogModuleScan, "search", "Mailbox searched", map[string]interface{}{
		"account_id": accountID,
		"found":      len(seqNums),
	})

	metas, err := s.fetchEnvelopes(c, seqNums)
	if err != nil {
		return summary, err
	}

	// Skip body fetches for messages the seen-set already has; they
	// still count in the summary so reruns are visible.
	var unseen []messageMeta
	for _, meta := range metas {
		seen, err := s.pipeline.Seen().HasSeen(accountID, meta.messageID)
		if err != nil {
			return summary, err
		}
		if seen {
			summary.Record(ingest.IngestResult{Kind: ingest.ResultSkippedAlreadySeen})
			continue
		}
		unseen = append(unseen, meta)
	}

	if len(unseen) > 0 {
		if err := s.ingestBodies(c, account, unseen, summary); err != nil {
			return summary, err
		}
	}

	now := time.Now()
	if err := s.accountService.UpdateLastScan(accountID, now); err != nil {
		s.logService.LogWarn(models.LogModuleScan, "finish", "Failed to record scan time", map[string]interface{}{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}

	s.logService.LogInfo(models.LogModuleScan, "finish", "Scan completed", map[string]interface{}{
		"account_id":           accountID,
		"processed":            summary.Processed,
		"applied":              summary.Applied,
		"skipped_seen":         summary.SkippedSeen,
		"skipped_unclassified": summary.SkippedUnclassified,
		"skipped_no_order":     summary.SkippedNoOrder,
		"rejected_conflicts":   summary.RejectedConflicts,
	})
	return summary, nil
}

// ScanAllAccounts scans every enabled account sequentially and returns
// the aggregate summary. Per-account failures are logged, counted and
// do not stop the batch.
func (s *ScanService) ScanAllAccounts(days int) (*ingest.ScanSummary, error) {
	accounts, err := s.accountService.ListEnabledAccounts()
	if err != nil {
		return nil, err
	}

	total := &ingest.ScanSummary{}
	for _, account := range accounts {
		summary, err := s.ScanAccount(account.ID, days)
		if err != nil {
			total.Errors++
			s.logService.LogError(models.LogModuleScan, "scan", "Account scan failed", map[string]interface{}{
				"account_id": account.ID,
				"error":      err.Error(),
			})
			continue
		}
		total.Processed += summary.Processed
		total.Applied += summary.Applied
		total.SkippedSeen += summary.SkippedSeen
		total.SkippedUnclassified += summary.SkippedUnclassified
		total.SkippedNoOrder += summary.SkippedNoOrder
		total.RejectedConflicts += summary.RejectedConflicts
		total.Errors += summary.Errors
	}
	return total, nil
}

type messageMeta struct {
	uid       uint32
	messageID string
	envelope  *imap.Envelope
}

const fetchBatchSize = 10

// fetchEnvelopes retrieves UIDs and envelopes for the sequence numbers
func (s *ScanService) fetchEnvelopes(c *client.Client, seqNums []uint32) ([]messageMeta, error) {
	var metas []messageMeta
	for i := 0; i < len(seqNums); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(seqNums) {
			end = len(seqNums)
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(seqNums[i:end]...)

		items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}
		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- c.Fetch(seqSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil || msg.Envelope == nil {
				continue
			}
			messageID := msg.Envelope.MessageId
			if messageID == "" {
				messageID = fmt.Sprintf("uid:%d", msg.Uid)
			}
			metas = append(metas, messageMeta{
				uid:       msg.Uid,
				messageID: messageID,
				envelope:  msg.Envelope,
			})
		}
		if err := <-done; err != nil {
			return metas, fmt.Errorf("envelope fetch failed: %v", err)
		}
	}
	return metas, nil
}

// ingestBodies fetches bodies for the unseen messages and runs each one
// through the pipeline in UID order.
func (s *ScanService) ingestBodies(c *client.Client, account *models.EmailAccount,
	metas []messageMeta, summary *ingest.ScanSummary) error {

	uidToMeta := make(map[uint32]messageMeta, len(metas))
	uids := make([]uint32, 0, len(metas))
	for _, meta := range metas {
		uids = append(uids, meta.uid)
		uidToMeta[meta.uid] = meta
	}

	section := &imap.BodySectionName{Peek: true}
	uidToBody := make(map[uint32][]byte, len(metas))

	for i := 0; i < len(uids); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		uidSet := new(imap.SeqSet)
		uidSet.AddNum(uids[i:end]...)

		items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}
		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(uidSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil {
				continue
			}
			for _, literal := range msg.Body {
				content, err := io.ReadAll(literal)
				if err == nil && len(content) > 0 {
					uidToBody[msg.Uid] = content
				}
			}
		}
		if err := <-done; err != nil {
			s.logService.LogWarn(models.LogModuleScan, "fetch", "Body fetch error", map[string]interface{}{
				"account_id": account.ID,
				"error":      err.Error(),
			})
		}
	}

	for _, meta := range metas {
		raw := ingest.RawMessage{
			MessageID: meta.messageID,
			Subject:   meta.envelope.Subject,
			Date:      meta.envelope.Date,
		}
		if len(meta.envelope.From) > 0 {
			raw.From = formatAddress(meta.envelope.From[0])
		}
		if len(meta.envelope.To) > 0 {
			raw.To = formatAddress(meta.envelope.To[0])
		}

		if body, ok := uidToBody[meta.uid]; ok && len(body) > 0 {
			parseBody(body, &raw)
			if _, err := s.storage.SaveRawEmail(account.ID, meta.messageID, body); err != nil {
				s.logService.LogWarn(models.LogModuleScan, "archive", "Raw email archive failed", map[string]interface{}{
					"account_id": account.ID,
					"message_id": meta.messageID,
					"error":      err.Error(),
				})
			}
		}

		result, err := s.pipeline.Ingest(account.ID, raw)
		if err != nil {
			summary.Errors++
			s.logService.LogError(models.LogModuleIngest, "ingest", "Message ingestion failed", map[string]interface{}{
				"account_id": account.ID,
				"message_id": meta.messageID,
				"error":      err.Error(),
			})
			continue
		}
		summary.Record(result)

		if result.Kind == ingest.ResultRejectedConflict {
			s.logService.LogWarn(models.LogModuleIngest, "merge", "Conflicting terminal transition rejected", map[string]interface{}{
				"account_id": account.ID,
				"message_id": meta.messageID,
				"reason":     result.Reason,
			})
		}
	}
	return nil
}

// parseBody extracts the text and HTML parts of a raw RFC 822 message
func parseBody(body []byte, raw *ingest.RawMessage) {
	entity, err := message.Read(bytes.NewReader(body))
	if err != nil {
		// Fall back to a plain RFC 822 read; a body we cannot parse at
		// all just leaves the message with empty text.
		m, err := mail.ReadMessage(bytes.NewReader(body))
		if err != nil {
			return
		}
		b, _ := io.ReadAll(m.Body)
		raw.TextBody = string(b)
		return
	}
	walkEntity(entity, raw)
}

// walkEntity recursively collects the first text/plain and text/html
// parts of a MIME message
func walkEntity(entity *message.Entity, raw *ingest.RawMessage) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			walkEntity(part, raw)
		}
		return
	}

	switch {
	case mediaType == "text/plain" && raw.TextBody == "":
		b, _ := io.ReadAll(entity.Body)
		raw.TextBody = string(b)
	case mediaType == "text/html" && raw.HTMLBody == "":
		b, _ := io.ReadAll(entity.Body)
		raw.HTMLBody = string(b)
	}
}

// formatAddress formats an IMAP address to a string
func formatAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}
	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}
