package constants

import "strings"

// AllowedUploadExtensions holds the default allowed file extensions for
// scanned-document uploads.
var AllowedUploadExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// SpreadsheetExtensions holds the extensions the portal-export parser accepts.
var SpreadsheetExtensions = map[string]struct{}{
	"xlsx": {},
	"xls":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
