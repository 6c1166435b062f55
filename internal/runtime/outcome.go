package runtime

import (
	"net/http"

	"github.com/conneroisu/pagemill/internal/collection"
)

// ErrorKind classifies a ServerError for transports and reports.
type ErrorKind string

const (
	KindParseError ErrorKind = "parse-error"
	KindNotFound   ErrorKind = "not-found"
	KindCollection ErrorKind = "collection"
	KindPagination ErrorKind = "pagination"
	KindUnknown    ErrorKind = "unknown"
)

// Outcome is the result of loading one request. It is one of *Success,
// *Redirect, *NotFound or *ServerError.
type Outcome interface {
	StatusCode() int
	// CollectionInfo is set when the request was served by a collection.
	CollectionInfo() *collection.Info
	outcome()
}

// Success is a rendered page.
type Success struct {
	Body        string
	ContentType string
	Info        *collection.Info
}

func (*Success) StatusCode() int                    { return http.StatusOK }
func (s *Success) CollectionInfo() *collection.Info { return s.Info }
func (*Success) outcome()                           {}

// Redirect points the client at the canonical URL of a page.
type Redirect struct {
	Status   int
	Location string
	Info     *collection.Info
}

func (r *Redirect) StatusCode() int                  { return r.Status }
func (r *Redirect) CollectionInfo() *collection.Info { return r.Info }
func (*Redirect) outcome()                           {}

// NotFound means no page answers the request.
type NotFound struct {
	Reason string
	Info   *collection.Info
}

func (*NotFound) StatusCode() int                    { return http.StatusNotFound }
func (n *NotFound) CollectionInfo() *collection.Info { return n.Info }
func (*NotFound) outcome()                           {}

// ServerError is a page that exists but could not be produced.
type ServerError struct {
	Kind ErrorKind
	// Detail is a human readable description, e.g. the missing module.
	Detail string
	Err    error
	// File is the page source relative to the pages root.
	File string
	Info *collection.Info
}

func (*ServerError) StatusCode() int                    { return http.StatusInternalServerError }
func (e *ServerError) CollectionInfo() *collection.Info { return e.Info }
func (*ServerError) outcome()                           {}

// Label names the outcome class, e.g. for metrics and export reports.
func Label(o Outcome) string {
	switch v := o.(type) {
	case *Success:
		return "success"
	case *Redirect:
		return "redirect"
	case *NotFound:
		return "not-found"
	case *ServerError:
		return "error-" + string(v.Kind)
	default:
		return "unknown"
	}
}

// StatusText returns the title a transport shows for the outcome.
func StatusText(o Outcome) string {
	se, ok := o.(*ServerError)
	if !ok {
		return http.StatusText(o.StatusCode())
	}
	switch se.Kind {
	case KindParseError:
		return "Parse Error"
	case KindNotFound:
		return "Module Not Found"
	case KindCollection:
		return "Collection Error"
	case KindPagination:
		return "Pagination Error"
	default:
		return "Internal Server Error"
	}
}
