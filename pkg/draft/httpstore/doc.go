// Package httpstore speaks the draft Persistence API over HTTP. Client is a
// draft.Store backed by a remote service; Handler serves any draft.Store
// with the same routes and payloads.
//
// Status mapping: 404 is draft.ErrNotFound, 409 is draft.ErrFinalized and
// 400/422 bodies of the form {"errors": {"<path>": ["msg"]}} become a
// *draft.RejectedError with paths mapped onto known field names.
package httpstore
