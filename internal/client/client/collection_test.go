package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

type recorded struct {
	Method string
	Path   string
	Body   string
}

// recorder captures requests and answers from a per-route table.
type recorder struct {
	calls  []recorded
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.calls = append(rec.calls, recorded{Method: r.Method, Path: r.URL.RequestURI(), Body: string(body)})
	if h, ok := rec.routes[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func reply(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestCollection_List_BareArray(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/tasks/": reply(200, `[{"id":1,"title":"Run"},{"id":2,"title":"Read"}]`),
	}}
	col := NewCollection[task](newTestClient(t, rec, nil), "tasks")

	items, err := col.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []task{{ID: "1", Title: "Run"}, {ID: "2", Title: "Read"}}, items)
}

func TestCollection_List_FollowsPagination(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, rec, nil)
	next := c.base.String() + "tasks/?page=2"
	rec.routes = map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/tasks/": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				_, _ = io.WriteString(w, `{"count":3,"next":null,"previous":"x","results":[{"id":3,"title":"c"}]}`)
				return
			}
			_, _ = io.WriteString(w, `{"count":3,"next":"`+next+`","previous":null,"results":[{"id":1,"title":"a"},{"id":2,"title":"b"}]}`)
		},
	}

	items, err := NewCollection[task](c, "tasks").List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[2].Title)
	assert.Equal(t, "/api/tasks/?page=2", rec.calls[1].Path)
}

func TestCollection_List_EmptyIsNotNil(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/projects/": reply(200, `{"count":0,"next":null,"results":[]}`),
	}}
	items, err := NewCollection[task](newTestClient(t, rec, nil), "projects").List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCollection_List_UnexpectedShape(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/tasks/": reply(200, `{"detail":"oops"}`),
	}}
	_, err := NewCollection[task](newTestClient(t, rec, nil), "tasks").List(context.Background())
	require.ErrorIs(t, err, ErrRejected)
}

func TestCollection_List_ServerErrorIsUnavailable(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/tasks/": reply(503, `down`),
	}}
	_, err := NewCollection[task](newTestClient(t, rec, nil), "tasks").List(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCollection_Get_NotFound(t *testing.T) {
	rec := &recorder{}
	_, err := NewCollection[task](newTestClient(t, rec, nil), "tasks").Get(context.Background(), "999")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "/api/tasks/999/", rec.calls[0].Path)
}

func TestCollection_CreateUpdate_SendBodies(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"POST /api/tasks/":   reply(201, `{"id":10,"title":"A"}`),
		"PUT /api/tasks/10/": reply(200, `{"id":10,"title":"B"}`),
	}}
	col := NewCollection[task](newTestClient(t, rec, nil), "tasks")
	ctx := context.Background()

	created, err := col.Create(ctx, json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("10"), created.ID)

	updated, err := col.Update(ctx, "10", json.RawMessage(`{"title":"B"}`))
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Title)

	assert.Equal(t, []recorded{
		{Method: "POST", Path: "/api/tasks/", Body: `{"title":"A"}`},
		{Method: "PUT", Path: "/api/tasks/10/", Body: `{"title":"B"}`},
	}, rec.calls)
}

func TestCollection_Create_ValidationErrorIsPermanent(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"POST /api/tasks/": reply(400, `{"title":["This field is required."]}`),
	}}
	_, err := NewCollection[task](newTestClient(t, rec, nil), "tasks").Create(context.Background(), json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "This field is required.")
}

func TestCollection_Delete_AbsorbsNotFound(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"DELETE /api/tasks/1/": reply(204, ``),
	}}
	col := NewCollection[task](newTestClient(t, rec, nil), "tasks")

	require.NoError(t, col.Delete(context.Background(), "1"))
	require.NoError(t, col.Delete(context.Background(), "2"))
}

func TestCollection_Delete_OtherErrors(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"DELETE /api/tasks/1/": reply(500, ``),
	}}
	err := NewCollection[task](newTestClient(t, rec, nil), "tasks").Delete(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCollection_Action(t *testing.T) {
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"POST /api/habits/7/complete/": reply(200, `{"id":7}`),
	}}
	err := NewCollection[task](newTestClient(t, rec, nil), "habits").Action(context.Background(), "7", "complete")
	require.NoError(t, err)
	assert.Equal(t, "POST", rec.calls[0].Method)
}

func TestCollection_List_NoBearerToForeignNext(t *testing.T) {
	var foreignAuth []string
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignAuth = append(foreignAuth, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"count":2,"next":null,"results":[{"id":2,"title":"b"}]}`)
	}))
	t.Cleanup(foreign.Close)

	var ownAuth string
	rec := &recorder{routes: map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/tasks/": func(w http.ResponseWriter, r *http.Request) {
			ownAuth = r.Header.Get("Authorization")
			_, _ = io.WriteString(w, `{"count":2,"next":"`+foreign.URL+`/api/tasks/?page=2","results":[{"id":1,"title":"a"}]}`)
		},
	}}
	access := signed(t, time.Now().Add(time.Hour))
	c := newTestClient(t, rec, &fakeTokens{t: Tokens{Access: access, Refresh: "r1"}})

	items, err := NewCollection[task](c, "tasks").List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Bearer "+access, ownAuth)
	require.Len(t, foreignAuth, 1)
	assert.Empty(t, foreignAuth[0])
}
