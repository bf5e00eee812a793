package api

import (
	"context"
	"fmt"

	"github.com/google/go-querystring/query"

	"github.com/nhle/puttnotify/internal/model"
)

// Page selects a window of the notification list.
type Page struct {
	Limit  int `url:"limit,omitempty"`
	Offset int `url:"offset,omitempty"`
}

// Notifications fetches one page of the player's notifications.
func (c *Client) Notifications(ctx context.Context, playerID int64, page Page) (*model.NotificationPage, error) {
	path := fmt.Sprintf("/player/%d/notifications", playerID)

	values, err := query.Values(page)
	if err != nil {
		return nil, &Error{Message: "Failed to encode request.", Path: path}
	}
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result model.NotificationPage
	if _, err := c.Get(ctx, path, &result); err != nil {
		return nil, err
	}

	if result.Notifications == nil {
		result.Notifications = []model.Notification{}
	}

	return &result, nil
}

// UnreadCount fetches the server-authoritative unread total.
func (c *Client) UnreadCount(ctx context.Context, playerID int64) (int, error) {
	var result model.UnreadSummary
	if _, err := c.Get(ctx, fmt.Sprintf("/player/%d/notifications/unread-count", playerID), &result); err != nil {
		return 0, err
	}

	return result.UnreadCount, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, playerID, notificationID int64) error {
	path := fmt.Sprintf("/player/%d/notifications/%d/read", playerID, notificationID)
	_, err := c.Post(ctx, path, nil, nil)
	return err
}

// MarkAllNotificationsRead marks every notification of the player as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, playerID int64) error {
	_, err := c.Post(ctx, fmt.Sprintf("/player/%d/notifications/read-all", playerID), nil, nil)
	return err
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, playerID, notificationID int64) error {
	_, err := c.Delete(ctx, fmt.Sprintf("/player/%d/notifications/%d", playerID, notificationID), nil)
	return err
}
