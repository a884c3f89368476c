package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// PBV2Error is a coded failure raised while reading a tree or evaluating it for one selection set.
type PBV2Error struct {
	Code     Code
	Message  string
	Path     string
	EntityID string
	Node     string
	Edge     string
}

func New(code Code, msg string) *PBV2Error {
	return &PBV2Error{
		Code:    code,
		Message: msg,
	}
}

// Newf creates a new PBV2Error with a formatted message
func Newf(code Code, format string, args ...any) *PBV2Error {
	// %w is accepted for symmetry with fmt.Errorf but only the message is kept
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
		}
	}

	return New(code, fmt.Sprintf(format, args...))
}

// Wrap returns err as a PBV2Error, keeping an existing one intact.
func Wrap(code Code, err error) *PBV2Error {
	if err == nil {
		return nil
	}

	if pbErr, ok := AsPBV2Error(err); ok {
		return pbErr
	}

	return New(code, err.Error())
}

func (e *PBV2Error) Error() string {
	path := []string{}
	if e.Node != "" {
		path = append(path, fmt.Sprintf("node '%s'", e.Node))
	}
	if e.Edge != "" {
		path = append(path, fmt.Sprintf("edge '%s'", e.Edge))
	}
	if e.Path != "" {
		path = append(path, fmt.Sprintf("path '%s'", e.Path))
	}

	prefix := string(e.Code)
	if len(path) > 0 {
		prefix += " " + strings.Join(path, " -> ")
	}

	return prefix + ": " + e.Message
}

func (e *PBV2Error) AddNode(nodeID string) *PBV2Error {
	e.Node = nodeID
	if e.EntityID == "" {
		e.EntityID = nodeID
	}
	return e
}

func (e *PBV2Error) AddEdge(edgeID string) *PBV2Error {
	e.Edge = edgeID
	if e.EntityID == "" {
		e.EntityID = edgeID
	}
	return e
}

// AddPath sets the dotted locator of the failing element. An existing path is kept as a suffix so
// inner callers can report the expression position and outer callers the owning element.
func (e *PBV2Error) AddPath(path string) *PBV2Error {
	if e.Path == "" {
		e.Path = path
		return e
	}
	if path != "" && !strings.HasPrefix(e.Path, path) {
		e.Path = path + "." + e.Path
	}
	return e
}

func (e *PBV2Error) AddEntity(entityID string) *PBV2Error {
	e.EntityID = entityID
	return e
}

func (e *PBV2Error) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).
		AddMetaValue("code", string(e.Code)).
		AddMetaValue("path", e.Path).
		AddMetaValue("entity_id", e.EntityID).
		AddMetaValue("node_id", e.Node).
		AddMetaValue("edge_id", e.Edge)
}

func IsPBV2Error(err error) bool {
	_, ok := AsPBV2Error(err)
	return ok
}

func AsPBV2Error(err error) (*PBV2Error, bool) {
	var pbErr *PBV2Error
	if stderrors.As(err, &pbErr) {
		return pbErr, true
	}
	return nil, false
}

// HasCode reports whether err is a PBV2Error carrying code.
func HasCode(err error, code Code) bool {
	pbErr, ok := AsPBV2Error(err)
	return ok && pbErr.Code == code
}
