package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "haven.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s *Store, email, alias string) string {
	t.Helper()
	ctx := context.Background()
	now := store.Now()
	a := &store.Account{ID: store.NewID(), Email: email, PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NoError(t, s.UpsertProfile(ctx, &store.Profile{
		ID: store.NewID(), UserID: a.ID, Alias: alias, NotificationsEnabled: true, CreatedAt: now, UpdatedAt: now,
	}))
	return a.ID
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haven.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestAccountsAndProfiles(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := seedAccount(t, s, "a@x.com", "AnonymousABC123")

	a, err := s.GetAccountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)

	now := store.Now()
	err = s.CreateAccount(ctx, &store.Account{ID: store.NewID(), Email: "a@x.com", PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, s.UpdatePasswordHash(ctx, id, []byte("new")))
	a, err = s.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), a.PasswordHash)

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", []byte("x")), store.ErrNotFound)

	_, err = s.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	bio := "hello"
	p, err := s.GetProfile(ctx, id)
	require.NoError(t, err)
	p.Bio = &bio
	p.NotificationsEnabled = false
	require.NoError(t, s.UpsertProfile(ctx, p))

	p, err = s.GetProfile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p.Bio)
	assert.Equal(t, "hello", *p.Bio)
	assert.False(t, p.NotificationsEnabled)
	assert.Nil(t, p.AvatarURL)

	other := seedAccount(t, s, "b@x.com", "AnonymousDEF456")
	found, err := s.SearchProfiles(ctx, id, "def", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, other, found[0].UserID)

	found, err = s.SearchProfiles(ctx, id, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	listed, err := s.ListProfiles(ctx, []string{id, other})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestDeleteUserDataCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := seedAccount(t, s, "a@x.com", "AnonymousA")
	now := store.Now()

	require.NoError(t, s.CreateChat(ctx, &store.AIChat{ID: store.NewID(), UserID: id, Title: "New Chat", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.AddMood(ctx, &store.MoodLog{ID: store.NewID(), UserID: id, Mood: "good", CreatedAt: now}))
	require.NoError(t, s.CreateResetCode(ctx, &store.ResetCode{ID: store.NewID(), Email: "a@x.com", CodeHash: []byte("h"), ExpiresAt: now.Add(time.Minute), CreatedAt: now}))

	require.NoError(t, s.DeleteUserData(ctx, id))

	_, err := s.GetProfile(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	chats, err := s.ListChats(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chats)
	moods, err := s.ListMoods(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, moods)
	_, err = s.FindActiveResetCode(ctx, "a@x.com", []byte("h"), now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteUserData(ctx, id), store.ErrNotFound)
}

func TestChatsOrderAndMessages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := seedAccount(t, s, "a@x.com", "AnonymousA")
	base := store.Now()

	first := &store.AIChat{ID: store.NewID(), UserID: id, Title: "New Chat", CreatedAt: base, UpdatedAt: base}
	second := &store.AIChat{ID: store.NewID(), UserID: id, Title: "New Chat", CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(time.Second)}
	require.NoError(t, s.CreateChat(ctx, first))
	require.NoError(t, s.CreateChat(ctx, second))

	require.NoError(t, s.TouchChat(ctx, first.ID, base.Add(time.Minute)))
	require.NoError(t, s.UpdateChatTitle(ctx, first.ID, "Feeling low..."))

	chats, err := s.ListChats(ctx, id)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
	assert.Equal(t, "Feeling low...", chats[0].Title)

	for i, role := range []string{store.RoleUser, store.RoleAssistant} {
		require.NoError(t, s.AddChatMessage(ctx, &store.AIMessage{
			ID: store.NewID(), ChatID: first.ID, Role: role, Content: role, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	msgs, err := s.ListChatMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)

	require.NoError(t, s.DeleteChat(ctx, first.ID))
	msgs, err = s.ListChatMessages(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, s.DeleteChat(ctx, first.ID), store.ErrNotFound)
}

func TestForumPostsAndReplies(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	author := seedAccount(t, s, "a@x.com", "AnonymousA")
	replier := seedAccount(t, s, "b@x.com", "AnonymousB")
	base := store.Now()

	stress := &store.ForumPost{ID: store.NewID(), UserID: author, Title: "Exams", Content: "So much 100% stress", Category: "stress", CreatedAt: base}
	general := &store.ForumPost{ID: store.NewID(), UserID: author, Title: "Hello", Content: "hi all", Category: "general", CreatedAt: base.Add(time.Second)}
	require.NoError(t, s.CreatePost(ctx, stress))
	require.NoError(t, s.CreatePost(ctx, general))

	require.NoError(t, s.CreateReply(ctx, &store.ForumReply{ID: store.NewID(), PostID: stress.ID, UserID: replier, Content: "hang in there", CreatedAt: base}))

	posts, err := s.ListPosts(ctx, store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, general.ID, posts[0].ID)
	assert.Equal(t, "AnonymousA", posts[0].AuthorAlias)
	assert.Equal(t, 1, posts[1].ReplyCount)

	posts, err = s.ListPosts(ctx, store.PostFilter{Category: "stress"})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	posts, err = s.ListPosts(ctx, store.PostFilter{Query: "100%"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, stress.ID, posts[0].ID)

	count, err := s.CountPosts(ctx, store.PostFilter{Query: "EXAMS"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	posts, err = s.ListPosts(ctx, store.PostFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, stress.ID, posts[0].ID)

	replies, err := s.ListReplies(ctx, stress.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "AnonymousB", replies[0].AuthorAlias)

	require.NoError(t, s.DeletePost(ctx, stress.ID))
	_, err = s.GetReply(ctx, replies[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPeerChatsAndMessages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, s, "a@x.com", "AnonymousA")
	bob := seedAccount(t, s, "b@x.com", "AnonymousB")
	now := store.Now()

	chat := &store.PeerChat{ID: store.NewID(), Participant1ID: alice, Participant2ID: bob, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreatePeerChat(ctx, chat))

	found, err := s.FindPeerChat(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)

	image := "http://x/img.png"
	m1 := &store.PeerMessage{ID: store.NewID(), ChatID: chat.ID, SenderID: alice, Content: "hi", CreatedAt: now}
	m2 := &store.PeerMessage{ID: store.NewID(), ChatID: chat.ID, SenderID: bob, ImageURL: &image, CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.AddPeerMessage(ctx, m1))
	require.NoError(t, s.AddPeerMessage(ctx, m2))

	last, err := s.LastPeerMessages(ctx, []string{chat.ID})
	require.NoError(t, err)
	assert.Equal(t, m2.ID, last[chat.ID].ID)

	require.NoError(t, s.MarkDeletedForSender(ctx, m1.ID))
	msgs, err := s.ListPeerMessages(ctx, chat.ID, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	msgs, err = s.ListPeerMessages(ctx, chat.ID, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.NoError(t, s.MarkDeletedForEveryone(ctx, m2.ID))
	msgs, err = s.ListPeerMessages(ctx, chat.ID, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	last, err = s.LastPeerMessages(ctx, []string{chat.ID})
	require.NoError(t, err)
	assert.Equal(t, m1.ID, last[chat.ID].ID)

	require.NoError(t, s.HideConversation(ctx, alice, chat.ID))
	require.NoError(t, s.HideConversation(ctx, alice, chat.ID))
	chats, err := s.ListPeerChats(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, chats)
	chats, err = s.ListPeerChats(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	require.NoError(t, s.UnhideConversation(ctx, alice, chat.ID))
	chats, err = s.ListPeerChats(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestNotifications(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := seedAccount(t, s, "a@x.com", "AnonymousA")
	now := store.Now()

	ref, refType := store.NewID(), "forum_post"
	n1 := &store.Notification{ID: store.NewID(), UserID: id, Type: "forum", Title: "t", Message: "m", ReferenceID: &ref, ReferenceType: &refType, CreatedAt: now}
	n2 := &store.Notification{ID: store.NewID(), UserID: id, Type: "message", Title: "t", Message: "m", CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.CreateNotification(ctx, n1))
	require.NoError(t, s.CreateNotification(ctx, n2))

	unread, err := s.CountUnreadNotifications(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, s.MarkNotificationRead(ctx, n1.ID))
	got, err := s.GetNotification(ctx, n1.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	require.NotNil(t, got.ReferenceType)
	assert.Equal(t, "forum_post", *got.ReferenceType)

	require.NoError(t, s.MarkAllNotificationsRead(ctx, id))
	unread, err = s.CountUnreadNotifications(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, unread)

	list, err := s.ListNotifications(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, n2.ID, list[0].ID)

	require.NoError(t, s.DeleteNotification(ctx, n2.ID))
	assert.ErrorIs(t, s.DeleteNotification(ctx, n2.ID), store.ErrNotFound)
}

func TestResetCodes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := store.Now()

	older := &store.ResetCode{ID: store.NewID(), Email: "a@x.com", CodeHash: []byte("h"), ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}
	newer := &store.ResetCode{ID: store.NewID(), Email: "a@x.com", CodeHash: []byte("h"), ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now.Add(time.Second)}
	expired := &store.ResetCode{ID: store.NewID(), Email: "a@x.com", CodeHash: []byte("e"), ExpiresAt: now.Add(-time.Minute), CreatedAt: now}
	for _, c := range []*store.ResetCode{older, newer, expired} {
		require.NoError(t, s.CreateResetCode(ctx, c))
	}

	got, err := s.FindActiveResetCode(ctx, "a@x.com", []byte("h"), now)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = s.FindActiveResetCode(ctx, "a@x.com", []byte("e"), now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.ConsumeResetCode(ctx, newer.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ConsumeResetCode(ctx, newer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.InvalidateResetCodes(ctx, "a@x.com"))
	_, err = s.FindActiveResetCode(ctx, "a@x.com", []byte("h"), now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	purged, err := s.PurgeResetCodes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}

func TestSecurityQuestionsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := seedAccount(t, s, "a@x.com", "AnonymousA")
	now := store.Now()

	q := &store.SecurityQuestions{UserID: id, Question1: "q1", Answer1Hash: []byte("a1"), Question2: "q2", Answer2Hash: []byte("a2"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.UpsertSecurityQuestions(ctx, q))
	q.Question1 = "q3"
	require.NoError(t, s.UpsertSecurityQuestions(ctx, q))

	got, err := s.GetSecurityQuestions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "q3", got.Question1)
	assert.Equal(t, []byte("a2"), got.Answer2Hash)

	_, err = s.GetSecurityQuestions(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
