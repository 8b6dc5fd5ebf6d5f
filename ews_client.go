package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxSyncPageSize   = 512
	defaultFetchBatch = 100
	maxResponseBytes  = 64 << 20
)

// EWSError is a failed EWS response, either a SOAP fault or a response
// message with a non-success ResponseClass.
type EWSError struct {
	Code    string
	Message string
}

func (e *EWSError) Error() string {
	if e.Message == "" {
		return "ews: " + e.Code
	}
	return fmt.Sprintf("ews: %s: %s", e.Code, e.Message)
}

// IsEWSCode reports whether err is an EWS error with the given response code.
func IsEWSCode(err error, code string) bool {
	var ewsErr *EWSError
	return errors.As(err, &ewsErr) && ewsErr.Code == code
}

// EWSClient talks SOAP to the Exchange Web Services endpoint of one mailbox.
type EWSClient struct {
	httpClient *http.Client
	config     EWSConfig
	endpoint   string
	// basicAuth is set for basic and NTLM auth; the NTLM negotiator reads the
	// credentials from the Authorization header.
	basicAuth bool
}

func NewEWSClient(config EWSConfig, httpClient *http.Client) *EWSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	auth := strings.ToLower(config.Auth)
	return &EWSClient{
		httpClient: httpClient,
		config:     config,
		endpoint:   config.Endpoint(),
		basicAuth:  auth == "basic" || auth == "ntlm" || auth == "",
	}
}

// SyncChanges returns every change to the calendar folder since token,
// in server order, and the token to resume from next time. An empty token
// requests the full folder contents as creates.
func (c *EWSClient) SyncChanges(ctx context.Context, token string) ([]ChangeRecord, string, error) {
	var changes []ChangeRecord
	state := token
	for {
		req := &syncFolderItemsRequest{
			BaseShape: "IdOnly",
			FolderID: folderIDXML{
				ID:           "calendar",
				EmailAddress: c.config.Account,
			},
			SyncState:          state,
			MaxChangesReturned: c.config.PageSize,
			SyncScope:          "NormalItems",
		}
		if req.MaxChangesReturned <= 0 || req.MaxChangesReturned > maxSyncPageSize {
			req.MaxChangesReturned = maxSyncPageSize
		}

		var resp responseEnvelope
		if err := c.call(ctx, "SyncFolderItems", req, &resp); err != nil {
			return nil, "", err
		}
		if resp.Body.SyncFolderItems == nil || len(resp.Body.SyncFolderItems.Messages) == 0 {
			return nil, "", errors.New("ews: empty SyncFolderItems response")
		}
		msg := resp.Body.SyncFolderItems.Messages[0]
		if err := msg.err(); err != nil {
			return nil, "", err
		}

		for _, entry := range msg.Changes.Entries {
			change, ok := entry.record()
			if !ok {
				logDebug("Ignoring change", "kind", entry.XMLName.Local)
				continue
			}
			changes = append(changes, change)
		}
		logDebug("Fetched sync page", "changes", len(msg.Changes.Entries), "last", msg.IncludesLastItemInRange)

		state = msg.SyncState
		if msg.IncludesLastItemInRange {
			return changes, state, nil
		}
	}
}

// FetchItems fetches full items including MIME content. Results are returned
// in request order; an item the server refuses carries its own error.
func (c *EWSClient) FetchItems(ctx context.Context, refs []ItemRef) ([]FetchResult, error) {
	batch := c.config.FetchBatch
	if batch <= 0 {
		batch = defaultFetchBatch
	}

	results := make([]FetchResult, 0, len(refs))
	for start := 0; start < len(refs); start += batch {
		end := start + batch
		if end > len(refs) {
			end = len(refs)
		}
		chunk := refs[start:end]

		req := &getItemRequest{
			Shape: itemShapeXML{
				BaseShape:          "IdOnly",
				IncludeMimeContent: true,
				FieldURIs: []fieldURIXML{
					{FieldURI: "item:Subject"},
					{FieldURI: "calendar:UID"},
					{FieldURI: "calendar:LegacyFreeBusyStatus"},
				},
			},
		}
		for _, ref := range chunk {
			req.ItemIDs = append(req.ItemIDs, itemIDRequest{ID: ref.ID, ChangeKey: ref.ChangeKey})
		}

		var resp responseEnvelope
		if err := c.call(ctx, "GetItem", req, &resp); err != nil {
			return nil, err
		}
		if resp.Body.GetItem == nil {
			return nil, errors.New("ews: empty GetItem response")
		}
		msgs := resp.Body.GetItem.Messages
		if len(msgs) != len(chunk) {
			return nil, fmt.Errorf("ews: GetItem returned %d messages for %d items", len(msgs), len(chunk))
		}

		for i, msg := range msgs {
			result := FetchResult{Ref: chunk[i]}
			switch {
			case msg.err() != nil:
				result.Err = msg.err()
			case len(msg.Items.Entries) == 0:
				result.Err = &EWSError{Code: "ErrorItemNotFound", Message: "no item in response"}
			default:
				result.Item, result.Err = msg.Items.Entries[0].sourceItem()
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func (c *EWSClient) call(ctx context.Context, action string, body interface{}, out *responseEnvelope) error {
	env := soapEnvelope{
		XmlnsSoap:  nsSoap,
		XmlnsTypes: nsTypes,
		XmlnsMsgs:  nsMessages,
		Header: soapHeader{
			Version: requestServerVersion{Version: c.config.Version},
		},
		Body: soapBody{Content: body},
	}
	if c.config.Impersonate {
		env.Header.Impersonation = &exchangeImpersonation{PrimarySmtpAddress: c.config.Account}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return fmt.Errorf("ews: encoding %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return fmt.Errorf("ews: building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://schemas.microsoft.com/exchange/services/2006/messages/"+action)
	if c.basicAuth {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ews: %s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("ews: reading %s response: %w", action, err)
	}

	// Faults come back with status 500 and a SOAP body worth decoding.
	decodeErr := xml.Unmarshal(data, out)
	if decodeErr == nil && out.Body.Fault != nil {
		return out.Body.Fault.err()
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ews: %s returned HTTP %d", action, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("ews: decoding %s response: %w", action, decodeErr)
	}
	return nil
}

func (f *soapFault) err() error {
	code := f.Detail.ResponseCode
	if code == "" {
		code = f.Code
	}
	msg := f.String
	if msg == "" {
		msg = f.Detail.Message
	}
	return &EWSError{Code: code, Message: msg}
}

func (s responseStatus) err() error {
	if s.ResponseClass == "Success" || (s.ResponseClass == "" && (s.ResponseCode == "" || s.ResponseCode == "NoError")) {
		return nil
	}
	return &EWSError{Code: s.ResponseCode, Message: s.MessageText}
}

func (c changeXML) record() (ChangeRecord, bool) {
	var kind ChangeType
	switch c.XMLName.Local {
	case "Create":
		kind = ChangeCreate
	case "Update":
		kind = ChangeUpdate
	case "Delete":
		kind = ChangeDelete
	default:
		return ChangeRecord{}, false
	}

	id := c.ItemID
	if id == nil {
		for _, item := range c.Items {
			if item.ItemID != nil {
				id = item.ItemID
				break
			}
		}
	}
	if id == nil || id.ID == "" {
		return ChangeRecord{}, false
	}
	return ChangeRecord{Type: kind, ItemID: id.ID, ChangeKey: id.ChangeKey}, true
}

func (i itemXML) sourceItem() (*SourceItem, error) {
	item := &SourceItem{
		Kind:       i.XMLName.Local,
		Subject:    i.Subject,
		UID:        i.UID,
		BusyStatus: i.LegacyFreeBusyStatus,
	}
	if i.ItemID != nil {
		item.ID = i.ItemID.ID
		item.ChangeKey = i.ItemID.ChangeKey
	}
	if mime := strings.Join(strings.Fields(i.MimeContent), ""); mime != "" {
		data, err := base64.StdEncoding.DecodeString(mime)
		if err != nil {
			return item, fmt.Errorf("ews: decoding MIME content of %s: %w", item.ID, err)
		}
		item.MimeContent = data
	}
	return item, nil
}
