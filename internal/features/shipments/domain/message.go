package domain

// DocumentMessage is the transient payload linking a shipment to an uploaded
// blob, carried over the queue as JSON. The field names are the wire format.
type DocumentMessage struct {
	// ShipmentID is the id of the shipment the document belongs to.
	ShipmentID int64 `json:"ShipmentId"`
	// BlobName is the object store name of the uploaded document.
	BlobName string `json:"BlobName"`
}
