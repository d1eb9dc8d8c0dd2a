package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/tidwall/gjson"
)

// maxPages bounds how many "next" links List follows.
const maxPages = 1000

// Collection is the Remote of one REST collection, e.g. "tasks".
type Collection[T any] struct {
	c    *HTTPClient
	name string
}

var _ Remote[struct{}] = (*Collection[struct{}])(nil)

func NewCollection[T any](c *HTTPClient, name string) *Collection[T] {
	return &Collection[T]{c: c, name: name}
}

func (col *Collection[T]) listPath() string { return col.name + "/" }

func (col *Collection[T]) itemPath(id string) string {
	return col.name + "/" + url.PathEscape(id) + "/"
}

// List fetches the whole collection. The server may answer with a bare JSON
// array or with a {count,next,previous,results} envelope; in the latter case
// every page is fetched.
func (col *Collection[T]) List(ctx context.Context) ([]T, error) {
	op := "list " + col.name
	out := make([]T, 0)
	next := col.listPath()

	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, &RemoteError{Op: op, Err: fmt.Errorf("%w: more than %d pages", ErrRejected, maxPages)}
		}

		body, err := col.c.do(ctx, request{op: op, method: http.MethodGet, path: next, auth: true})
		if err != nil {
			return nil, err
		}

		root := gjson.ParseBytes(body)
		items := root
		next = ""
		if root.IsObject() {
			results := root.Get("results")
			if !results.IsArray() {
				return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Body: excerpt(body), Err: fmt.Errorf("%w: unexpected list shape", ErrRejected)}
			}
			items = results
			next = root.Get("next").String()
		} else if !root.IsArray() {
			return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Body: excerpt(body), Err: fmt.Errorf("%w: unexpected list shape", ErrRejected)}
		}

		var pageItems []T
		if err := json.Unmarshal([]byte(items.Raw), &pageItems); err != nil {
			return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("%w: decode: %w", ErrRejected, err)}
		}
		out = append(out, pageItems...)
	}
	return out, nil
}

// Get returns common.ErrorNotFound (wrapped) when the server answers 404.
func (col *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return col.call(ctx, "get "+col.name, http.MethodGet, col.itemPath(id), nil)
}

func (col *Collection[T]) Create(ctx context.Context, body json.RawMessage) (T, error) {
	return col.call(ctx, "create "+col.name, http.MethodPost, col.listPath(), body)
}

func (col *Collection[T]) Update(ctx context.Context, id string, body json.RawMessage) (T, error) {
	return col.call(ctx, "update "+col.name, http.MethodPut, col.itemPath(id), body)
}

// Delete treats 404 as already deleted.
func (col *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := col.c.do(ctx, request{op: "delete " + col.name, method: http.MethodDelete, path: col.itemPath(id), auth: true})
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

// Action posts to the dedicated endpoint /<collection>/<id>/<action>/.
func (col *Collection[T]) Action(ctx context.Context, id, action string) error {
	path := col.itemPath(id) + url.PathEscape(action) + "/"
	_, err := col.c.do(ctx, request{op: action + " " + col.name, method: http.MethodPost, path: path, body: []byte("{}"), auth: true})
	return err
}

func (col *Collection[T]) call(ctx context.Context, op, method, path string, payload []byte) (T, error) {
	var v T
	body, err := col.c.do(ctx, request{op: op, method: method, path: path, body: payload, auth: true})
	if err != nil {
		return v, err
	}
	if len(body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, &RemoteError{Op: op, Err: fmt.Errorf("%w: decode: %w", ErrRejected, err)}
	}
	return v, nil
}
