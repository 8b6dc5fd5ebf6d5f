package main

import "encoding/xml"

const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
)

// Request side. Element names carry their prefix literally; the namespace
// declarations live on the envelope.

type soapEnvelope struct {
	XMLName    xml.Name   `xml:"soap:Envelope"`
	XmlnsSoap  string     `xml:"xmlns:soap,attr"`
	XmlnsTypes string     `xml:"xmlns:t,attr"`
	XmlnsMsgs  string     `xml:"xmlns:m,attr"`
	Header     soapHeader `xml:"soap:Header"`
	Body       soapBody   `xml:"soap:Body"`
}

type soapHeader struct {
	Version       requestServerVersion   `xml:"t:RequestServerVersion"`
	Impersonation *exchangeImpersonation `xml:"t:ExchangeImpersonation,omitempty"`
}

type requestServerVersion struct {
	Version string `xml:"Version,attr"`
}

type exchangeImpersonation struct {
	PrimarySmtpAddress string `xml:"t:ConnectingSID>t:PrimarySmtpAddress"`
}

type soapBody struct {
	Content interface{}
}

type syncFolderItemsRequest struct {
	XMLName            xml.Name    `xml:"m:SyncFolderItems"`
	BaseShape          string      `xml:"m:ItemShape>t:BaseShape"`
	FolderID           folderIDXML `xml:"m:SyncFolderId>t:DistinguishedFolderId"`
	SyncState          string      `xml:"m:SyncState,omitempty"`
	MaxChangesReturned int         `xml:"m:MaxChangesReturned"`
	SyncScope          string      `xml:"m:SyncScope"`
}

type folderIDXML struct {
	ID           string `xml:"Id,attr"`
	EmailAddress string `xml:"t:Mailbox>t:EmailAddress,omitempty"`
}

type getItemRequest struct {
	XMLName xml.Name        `xml:"m:GetItem"`
	Shape   itemShapeXML    `xml:"m:ItemShape"`
	ItemIDs []itemIDRequest `xml:"m:ItemIds>t:ItemId"`
}

type itemShapeXML struct {
	BaseShape          string        `xml:"t:BaseShape"`
	IncludeMimeContent bool          `xml:"t:IncludeMimeContent"`
	FieldURIs          []fieldURIXML `xml:"t:AdditionalProperties>t:FieldURI"`
}

type fieldURIXML struct {
	FieldURI string `xml:"FieldURI,attr"`
}

type itemIDRequest struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr,omitempty"`
}

// Response side. Tags without a namespace match any namespace.

type responseEnvelope struct {
	Body struct {
		Fault           *soapFault               `xml:"Fault"`
		SyncFolderItems *syncFolderItemsResponse `xml:"SyncFolderItemsResponse"`
		GetItem         *getItemResponse         `xml:"GetItemResponse"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		ResponseCode string `xml:"ResponseCode"`
		Message      string `xml:"Message"`
	} `xml:"detail"`
}

type responseStatus struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	ResponseCode  string `xml:"ResponseCode"`
	MessageText   string `xml:"MessageText"`
}

type syncFolderItemsResponse struct {
	Messages []syncFolderItemsMessage `xml:"ResponseMessages>SyncFolderItemsResponseMessage"`
}

type syncFolderItemsMessage struct {
	responseStatus
	SyncState               string `xml:"SyncState"`
	IncludesLastItemInRange bool   `xml:"IncludesLastItemInRange"`
	Changes                 struct {
		Entries []changeXML `xml:",any"`
	} `xml:"Changes"`
}

// changeXML is one of Create, Update, Delete or ReadFlagChange. Deletes
// carry the ItemId directly, creates and updates wrap it in the item.
type changeXML struct {
	XMLName xml.Name
	ItemID  *itemIDXML `xml:"ItemId"`
	Items   []itemXML  `xml:",any"`
}

type itemIDXML struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

type itemXML struct {
	XMLName              xml.Name
	ItemID               *itemIDXML `xml:"ItemId"`
	MimeContent          string     `xml:"MimeContent"`
	Subject              string     `xml:"Subject"`
	UID                  string     `xml:"UID"`
	LegacyFreeBusyStatus string     `xml:"LegacyFreeBusyStatus"`
}

type getItemResponse struct {
	Messages []getItemMessage `xml:"ResponseMessages>GetItemResponseMessage"`
}

type getItemMessage struct {
	responseStatus
	Items struct {
		Entries []itemXML `xml:",any"`
	} `xml:"Items"`
}
