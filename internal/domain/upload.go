package domain

import "time"

// UploadDescriptor is what the client reports after a direct upload to the
// object store. None of it is verified at registration time.
type UploadDescriptor struct {
	OriginalFilename string  `json:"originalFilename"`
	StorageKey       string  `json:"s3Key"`
	StoreURL         string  `json:"s3Url"`
	FileSize         int64   `json:"fileSize"`
	MimeType         *string `json:"mimeType,omitempty"`
}

// VerificationState records whether the registered object was seen in the store.
type VerificationState string

const (
	VerificationUnverified VerificationState = "unverified" // Client-reported only
	VerificationVerified   VerificationState = "verified"
	VerificationMissing    VerificationState = "missing"  // No object under the key
	VerificationMismatch   VerificationState = "mismatch" // Object size differs from the reported size
)

// UploadedFile stores metadata about one file attached to an AnalysisRequest.
// The bytes live in the object store.
type UploadedFile struct {
	ID                    string            `bson:"_id" json:"id"`
	RequestID             string            `bson:"requestId" json:"requestId"`
	OriginalFilename      string            `bson:"originalFilename" json:"originalFilename"`
	StorageKey            string            `bson:"s3Key" json:"s3Key"`
	StoreURL              string            `bson:"s3Url" json:"s3Url"`
	FileSize              int64             `bson:"fileSize" json:"fileSize"`
	MimeType              *string           `bson:"mimeType,omitempty" json:"mimeType"`
	Verification          VerificationState `bson:"verification" json:"verification"`
	VerifiedAt            *time.Time        `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	AnalysisResult        *string           `bson:"analysisResult,omitempty" json:"analysisResult"`
	AnalysisResultFileURL *string           `bson:"analysisResultFileUrl,omitempty" json:"analysisResultFileUrl"`
	CreatedAt             time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// NewUploadedFile turns a client descriptor into an unverified file row for requestID.
func NewUploadedFile(requestID string, d UploadDescriptor) UploadedFile {
	return UploadedFile{
		RequestID:        requestID,
		OriginalFilename: d.OriginalFilename,
		StorageKey:       d.StorageKey,
		StoreURL:         d.StoreURL,
		FileSize:         d.FileSize,
		MimeType:         d.MimeType,
		Verification:     VerificationUnverified,
	}
}
