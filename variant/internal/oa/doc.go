// Package oa converts the automation scalar encodings (OLE dates, FILETIME,
// currency and 96-bit DECIMAL) to and from Go values.
package oa
