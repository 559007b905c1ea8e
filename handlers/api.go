package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"community-chat/community"
	"community-chat/models"
	"community-chat/store"
)

// SetupAPIRoutes wires the local UI routes. Every handler is a single
// user-action round trip: remote call, local state update, response. A failed
// remote call logs, notifies the websocket clients and leaves state alone.
func SetupAPIRoutes(router *gin.Engine, api CommunityAPI, state *store.Store, log *logrus.Logger) {
	// CORS for the browser front-end
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(c.Writer, c.Request)
	})

	// Session state for the front-end's gate component.
	router.GET("/api/session", func(c *gin.Context) {
		user := state.Session()
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	authed := router.Group("/api")
	authed.Use(func(c *gin.Context) {
		if !state.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
			return
		}
		c.Next()
	})

	// Conversation list: refresh from the remote API, serve the filtered view.
	authed.GET("/conversations", func(c *gin.Context) {
		payloads, err := api.ListConversations(c.Request.Context())
		if err != nil {
			remoteFailure(c, log, state, err, "loading conversations")
			return
		}

		list := make([]models.Conversation, 0, len(payloads))
		for _, p := range payloads {
			list = append(list, p.ToConversation())
		}
		state.ReplaceConversations(list)

		filter := c.DefaultQuery("filter", store.FilterAll)
		c.JSON(http.StatusOK, gin.H{"conversations": state.Conversations(filter)})
	})

	// Full user directory, for DM targets and group member selection.
	authed.GET("/directory", func(c *gin.Context) {
		users, err := api.ListDirectory(c.Request.Context())
		if err != nil {
			remoteFailure(c, log, state, err, "loading user directory")
			return
		}
		state.SetDirectory(users)
		c.JSON(http.StatusOK, users)
	})

	// Favorite toggling is local-only state, no remote call involved.
	authed.POST("/conversations/:id/favorite", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		if _, exists := state.Get(id); !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		favorite := state.ToggleFavorite(id)
		BroadcastToClients("favorite_toggled", gin.H{"conversationId": id, "favorite": favorite})
		c.JSON(http.StatusOK, gin.H{"favorite": favorite})
	})

	// Thread view: messages are fetched lazily on first open.
	authed.GET("/conversations/:id/messages", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		if _, exists := state.Get(id); !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		if !state.MessagesLoaded(id) {
			payloads, err := api.ListMessages(c.Request.Context(), id)
			if err != nil {
				remoteFailure(c, log, state, err, "loading messages")
				return
			}
			messages := make([]models.Message, 0, len(payloads))
			for _, p := range payloads {
				messages = append(messages, p.ToMessage())
			}
			state.SetMessages(id, messages)
		}

		c.JSON(http.StatusOK, gin.H{"messages": state.Messages(id)})
	})

	// Send a message. Blank content is rejected before any request leaves.
	authed.POST("/conversations/:id/messages", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}

		var requestData struct {
			Content string `json:"content"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if strings.TrimSpace(requestData.Content) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
			return
		}
		if _, exists := state.Get(id); !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		message, err := api.SendMessage(c.Request.Context(), id, requestData.Content)
		if err != nil {
			remoteFailure(c, log, state, err, "sending message")
			return
		}

		// Appended locally only after the server acknowledged the send.
		if user := state.Session(); user != nil {
			message.SenderName = user.Name
		}
		state.AppendMessage(id, *message)
		BroadcastToClients("message_sent", gin.H{"conversationId": id, "message": message})

		c.JSON(http.StatusOK, gin.H{"status": "success", "messageData": message})
	})

	// Create a group conversation from the directory selection.
	authed.POST("/conversations/group", func(c *gin.Context) {
		var requestData struct {
			Name      string  `json:"name"`
			MemberIDs []int64 `json:"memberIds"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if strings.TrimSpace(requestData.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group name is empty"})
			return
		}
		if len(requestData.MemberIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no members selected"})
			return
		}

		payload, err := api.CreateGroup(c.Request.Context(), requestData.Name, requestData.MemberIDs)
		if err != nil {
			remoteFailure(c, log, state, err, "creating group")
			return
		}

		conv := payload.ToConversation()
		state.Upsert(conv)
		log.WithFields(logrus.Fields{
			"conversation_id": conv.ID,
			"members":         len(requestData.MemberIDs),
		}).Info("group created")
		BroadcastToClients("group_created", gin.H{"conversation": conv})

		c.JSON(http.StatusOK, gin.H{"status": "success", "group": conv})
	})

	// Open (or create) a direct chat. An already-loaded conversation with the
	// same user is reused, never duplicated.
	authed.POST("/conversations/dm", func(c *gin.Context) {
		var requestData struct {
			UserID int64 `json:"userId"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if requestData.UserID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no user selected"})
			return
		}

		if existingID, ok := state.DirectWith(requestData.UserID); ok {
			conv, _ := state.Get(existingID)
			c.JSON(http.StatusOK, gin.H{"conversation": conv, "existing": true})
			return
		}

		id, err := api.OpenDirectChat(c.Request.Context(), requestData.UserID)
		if err != nil {
			remoteFailure(c, log, state, err, "opening direct chat")
			return
		}

		conv := models.Conversation{
			ID:       id,
			Type:     models.TypeDirect,
			Name:     directChatName(state, requestData.UserID),
			Members:  directChatMembers(state, requestData.UserID),
			Messages: []models.Message{},
		}
		if state.Upsert(conv) {
			BroadcastToClients("conversation_opened", gin.H{"conversation": conv})
		}

		stored, _ := state.Get(id)
		c.JSON(http.StatusOK, gin.H{"conversation": stored, "existing": false})
	})

	// Membership panel.
	authed.GET("/conversations/:id/members", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}

		members, err := api.ListMembers(c.Request.Context(), id)
		if err != nil {
			remoteFailure(c, log, state, err, "loading members")
			return
		}
		state.SetMembers(id, members)
		c.JSON(http.StatusOK, gin.H{"members": members})
	})

	authed.POST("/conversations/:id/members", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}

		var requestData struct {
			MemberIDs []int64 `json:"memberIds"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if len(requestData.MemberIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no members selected"})
			return
		}

		if err := api.AddMembers(c.Request.Context(), id, requestData.MemberIDs); err != nil {
			remoteFailure(c, log, state, err, "adding members")
			return
		}

		// Refresh the local member list; a failure here is only logged.
		if members, err := api.ListMembers(c.Request.Context(), id); err == nil {
			state.SetMembers(id, members)
		} else {
			log.WithError(err).Warn("unable to refresh members after add")
		}
		BroadcastToClients("member_added", gin.H{"conversationId": id, "memberIds": requestData.MemberIDs})

		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	authed.DELETE("/conversations/:id/members/:memberId", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		memberID, err := strconv.ParseInt(c.Param("memberId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
			return
		}

		if err := api.RemoveMember(c.Request.Context(), id, memberID); err != nil {
			remoteFailure(c, log, state, err, "removing member")
			return
		}

		state.RemoveMember(id, memberID)
		BroadcastToClients("member_removed", gin.H{"conversationId": id, "memberId": memberID})
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// Leaving a group removes the caller's own membership, then drops the
	// conversation locally.
	authed.POST("/conversations/:id/leave", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		user := state.Session()
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
			return
		}

		if err := api.RemoveMember(c.Request.Context(), id, user.ID); err != nil {
			remoteFailure(c, log, state, err, "leaving conversation")
			return
		}

		state.Remove(id)
		BroadcastToClients("conversation_left", gin.H{"conversationId": id})
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	authed.DELETE("/conversations/:id", func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}

		if err := api.DeleteGroup(c.Request.Context(), id); err != nil {
			remoteFailure(c, log, state, err, "deleting conversation")
			return
		}

		state.Remove(id)
		BroadcastToClients("conversation_deleted", gin.H{"conversationId": id})
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})
}

// conversationID parses the :id path parameter, answering 400 itself when
// the value is not numeric.
func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

// remoteFailure is the single failure policy: an expired session invalidates
// the gate, anything else is logged, pushed as a transient notice and
// answered with the error. State is never rolled back because nothing was
// applied before the call succeeded.
func remoteFailure(c *gin.Context, log *logrus.Logger, state *store.Store, err error, action string) {
	if errors.Is(err, community.ErrUnauthorized) {
		state.SetSession(nil)
		log.WithField("action", action).Warn("session rejected by the API")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
		return
	}

	log.WithError(err).Errorf("%s failed", action)
	BroadcastToClients("notice", gin.H{"level": "error", "text": fmt.Sprintf("%s failed", action)})
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s failed: %v", action, err)})
}

// directChatName resolves the DM title from the loaded directory.
func directChatName(state *store.Store, userID int64) string {
	for _, user := range state.Directory() {
		if user.ID == userID {
			return user.Name
		}
	}
	return "Direct Message"
}

// directChatMembers builds the two-sided member list for a fresh DM.
func directChatMembers(state *store.Store, userID int64) []models.User {
	var members []models.User
	if self := state.Session(); self != nil {
		members = append(members, *self)
	}
	for _, user := range state.Directory() {
		if user.ID == userID {
			members = append(members, user)
			break
		}
	}
	return members
}
