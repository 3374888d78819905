package marketstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"NFTAppraiser/internal/domain/models"
	drepo "NFTAppraiser/internal/domain/repository"
)

// Client implements a SaleStream backed by a marketplace WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	collections    []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new marketplace SaleStream.
func New(apiKey, websocketURL string, collections []string, reconnectDelay, pingInterval time.Duration) drepo.SaleStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		collections:    collections,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("marketstream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("marketstream: connected")
	return nil
}

// Subscribe subscribes to sale events for the configured collections.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("marketstream not connected")
	}
	for _, id := range c.collections {
		msg := map[string]string{"type": "subscribe", "event": "item_sold", "collection": id}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", id, err)
		}
		log.Printf("marketstream: subscribed %s", id)
	}
	return nil
}

type wsSale struct {
	Collection string  `json:"collection"`
	TokenID    string  `json:"token_id"`
	Price      float64 `json:"price"`
	T          int64   `json:"t"` // ms
	Buyer      string  `json:"buyer"`
	Seller     string  `json:"seller"`
}

type wsMessage struct {
	Type string   `json:"type"`
	Data []wsSale `json:"data"`
}

// Read streams SaleRecord events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.SaleRecord, <-chan error) {
	sales := make(chan *models.SaleRecord, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(sales)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("marketstream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("marketstream read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-sale frames
					continue
				}
				if m.Type != "item_sold" {
					continue
				}
				for _, d := range m.Data {
					sale := &models.SaleRecord{
						CollectionID: d.Collection,
						TokenID:      d.TokenID,
						Price:        d.Price,
						Timestamp:    time.UnixMilli(d.T),
						Buyer:        d.Buyer,
						Seller:       d.Seller,
					}
					select {
					case sales <- sale:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return sales, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
