package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/testutil"
)

func Test_notificationApi(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	other := testutil.CreateUser(t, app.userRepo, "Other", "other", "other@test.ph", "", nil, true)
	adminToken := app.token(t, admin.Principal())
	otherToken := app.token(t, other.Principal())

	svc := app.srv.deps.NotificationSvc
	ctx := context.Background()
	require.NoError(t, svc.NotifyAdmins(ctx, "Broadcast", "to every admin"))
	require.NoError(t, svc.Notify(ctx, account.TypeAdmin, admin.ID, "Direct", "to admin only"))
	require.NoError(t, svc.Notify(ctx, account.TypeTeacher, admin.ID, "Teacher", "same ID, other account type"))

	list := func(t *testing.T, token, query string) []notification.Notification {
		rec := app.do(t, http.MethodGet, "/api/notifications"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		return notifs
	}
	titles := func(notifs []notification.Notification) []string {
		res := make([]string, 0, len(notifs))
		for _, n := range notifs {
			res = append(res, n.Title)
		}
		return res
	}

	notifs := list(t, adminToken, "")
	assert.ElementsMatch(t, []string{"Broadcast", "Direct"}, titles(notifs))
	assert.ElementsMatch(t, []string{"Broadcast"}, titles(list(t, otherToken, "")))

	var direct notification.Notification
	for _, n := range notifs {
		if n.Title == "Direct" {
			direct = n
		}
	}

	app.run(t, []httpTest{
		{name: "auth required", path: "/api/notifications", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{
			name: "not visible to other admins", method: http.MethodPatch, path: fmt.Sprintf("/api/notifications/%d/read", direct.ID),
			token: otherToken, wantCode: http.StatusNotFound,
		},
		{name: "mark read", method: http.MethodPatch, path: fmt.Sprintf("/api/notifications/%d/read", direct.ID), token: adminToken},
		{name: "unread count", path: "/api/notifications/unread-count", token: adminToken, wantData: UnreadCountResponse{Count: 1}},
	})

	assert.Equal(t, []string{"Broadcast"}, titles(list(t, adminToken, "?unread_only=true")))

	rec := app.do(t, http.MethodPatch, "/api/notifications/read-all", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, list(t, adminToken, "?unread_only=true"))
	assert.Len(t, list(t, adminToken, ""), 2)
}
