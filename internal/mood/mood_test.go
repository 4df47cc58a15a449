package mood

import (
	"context"
	"io"
	"log"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/testutil"
	"github.com/rexlx/mindhaven/internal/web"
)

func TestLogAndList(t *testing.T) {
	s := testutil.NewStore(t)
	svc := NewService(s, log.New(io.Discard, "", 0))
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")

	_, err := svc.Log(ctx, me, "ecstatic", "")
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))

	first, err := svc.Log(ctx, me, "Low", "  rough exam  ")
	require.NoError(t, err)
	assert.Equal(t, "low", first.Mood)
	require.NotNil(t, first.Notes)
	assert.Equal(t, "rough exam", *first.Notes)

	second, err := svc.Log(ctx, me, "good", "")
	require.NoError(t, err)
	assert.Nil(t, second.Notes)

	logs, err := svc.List(ctx, me)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[0].ID)

	other := testutil.SeedUser(t, s, "b@x.com", "Owl")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.Delete(ctx, other, first.ID)))
	require.NoError(t, svc.Delete(ctx, me, first.ID))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.Delete(ctx, me, first.ID)))

	logs, err = svc.List(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestHandlers(t *testing.T) {
	s := testutil.NewStore(t)
	svc := NewService(s, log.New(io.Discard, "", 0))
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	h := testutil.NewHarness(t, func(mux *http.ServeMux, sessions *web.Sessions) {
		NewHandlers(svc, sessions).RegisterRoutes(mux)
	})
	c := h.Client(t, me)

	status, _ := h.Do(t, h.Client(t, ""), http.MethodGet, "/api/moods", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := h.Do(t, c, http.MethodPost, "/api/moods", logRequest{Mood: "okay", Notes: "fine"})
	require.Equal(t, http.StatusCreated, status, string(body))
	entry := testutil.Decode[store.MoodLog](t, body)

	status, body = h.Do(t, c, http.MethodGet, "/api/moods", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, testutil.Decode[[]store.MoodLog](t, body), 1)

	status, _ = h.Do(t, c, http.MethodDelete, "/api/moods/"+entry.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}
