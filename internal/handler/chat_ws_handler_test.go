package handler_test

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
)

func startTestServer(t *testing.T, f *marketplaceFixture) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = f.app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = f.app.Shutdown()
	})

	return ln.Addr().String()
}

func dialChat(t *testing.T, addr string, roomID uint) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	url := fmt.Sprintf("ws://%s/ws/chat?room_id=%d", addr, roomID)

	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		conn, _, err = dialer.Dial(url, nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
			return conn
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("failed to dial chat websocket: %v", err)
	return nil
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.ChatEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event dto.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestChatWebsocketJoinSendLeave(t *testing.T) {
	f := setupMarketplaceApp(t)

	room := models.ChatRoom{ProductID: f.bike.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.Create(&room).Error)

	addr := startTestServer(t, f)

	buyerConn := dialChat(t, addr, room.ID)
	sellerConn := dialChat(t, addr, room.ID)

	// Both subscriptions attach during the upgrade; give the second connection
	// a moment before producing traffic.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, buyerConn.WriteJSON(dto.ChatEvent{
		ChatRoomID:     room.ID,
		SenderID:       f.buyer.ID,
		SenderUsername: "alice",
		Type:           dto.ChatEventJoin,
	}))

	joinSeen := readEvent(t, sellerConn)
	require.Equal(t, dto.ChatEventJoin, joinSeen.Type)
	require.Equal(t, "alice", joinSeen.SenderUsername)

	// The joining connection observes its own announcement too.
	ownJoin := readEvent(t, buyerConn)
	require.Equal(t, dto.ChatEventJoin, ownJoin.Type)

	require.NoError(t, buyerConn.WriteJSON(dto.ChatEvent{
		ChatRoomID: room.ID,
		SenderID:   f.buyer.ID,
		Content:    "is this still available?",
		Type:       dto.ChatEventChat,
	}))

	chatSeen := readEvent(t, sellerConn)
	require.Equal(t, dto.ChatEventChat, chatSeen.Type)
	require.Equal(t, "is this still available?", chatSeen.Content)
	require.Equal(t, "alice", chatSeen.SenderUsername)
	require.False(t, chatSeen.SentAt.IsZero())

	// Closing the joined connection announces the departure.
	require.NoError(t, buyerConn.Close())

	leaveSeen := readEvent(t, sellerConn)
	require.Equal(t, dto.ChatEventLeave, leaveSeen.Type)
	require.Equal(t, "alice", leaveSeen.SenderUsername)
	require.Equal(t, room.ID, leaveSeen.ChatRoomID)
}

func TestChatWebsocketRejectsMissingRoomID(t *testing.T) {
	f := setupMarketplaceApp(t)
	addr := startTestServer(t, f)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		conn, _, err = dialer.Dial(fmt.Sprintf("ws://%s/ws/chat", addr), nil)
		if err == nil || !isConnRefused(err) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	// The server upgrades, then immediately closes with a close frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, 400) || websocket.IsUnexpectedCloseError(err))
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
