package controllers

import (
	"errors"
	"net/http"
	"sort"

	"scilems/models"
	"scilems/store"

	"github.com/gin-gonic/gin"
)

type NotificationController struct{ *Srv }

func NewNotificationController(s *Srv) *NotificationController {
	return &NotificationController{Srv: s}
}

// UserNotifications returns global notifications plus the caller's own,
// newest first.
func (nc *NotificationController) UserNotifications(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	own, err := nc.Repos.Notifications.ListForUser(ctx, me)
	if err != nil {
		nc.respondError(c, err)
		return
	}
	global, err := nc.Repos.Notifications.ListGlobal(ctx)
	if err != nil {
		nc.respondError(c, err)
		return
	}

	all := make([]models.Notification, 0, len(own)+len(global))
	all = append(all, own...)
	all = append(all, global...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	c.JSON(http.StatusOK, gin.H{"message": "Notifications retrieved successfully", "notifications": all})
}

func (nc *NotificationController) GlobalNotifications(c *gin.Context) {
	global, err := nc.Repos.Notifications.ListGlobal(c.Request.Context())
	if err != nil {
		nc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Global notifications retrieved successfully", "notifications": global})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := objectIDParam(c, "notificationId")
	if !ok {
		return
	}
	n, err := nc.Repos.Notifications.MarkRead(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		nc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read", "notification": n})
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	n, err := nc.Repos.Notifications.MarkAllRead(c.Request.Context(), me)
	if err != nil {
		nc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}
