package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so upload events
// can be aggregated and queried by session, user, and chunk.
const (
	KeySessionID = "session_id" // Upload session identifier
	KeyUserID    = "user_id"    // Owner of the session
	KeyRequestID = "request_id" // HTTP request identifier

	KeyFilename   = "filename"    // Sanitized upload filename
	KeyMimeType   = "mime_type"   // Declared content type
	KeyStorageKey = "storage_key" // Object store key
	KeyUploadID   = "upload_id"   // Object store multipart upload handle

	KeyPartNumber = "part_number" // 1-based multipart part number
	KeyOffset     = "offset"      // Byte offset within the upload
	KeySize       = "size"        // Byte count
	KeyStatus     = "status"      // Session status
	KeyErrorCode  = "error_code"  // Terminal failure code

	KeyClientIP  = "client_ip"  // Client IP address
	KeyUserAgent = "user_agent" // Client user agent

	KeyDuration = "duration" // Operation duration
	KeyError    = "error"    // Error detail
)
