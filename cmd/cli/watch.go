package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func watchCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream your webtoon and upload events over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			wsURL, err := websocketURL(c.baseURL, "/ws")
			if err != nil {
				return err
			}

			hdr := http.Header{}
			hdr.Set("Authorization", "Bearer "+c.token)
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, hdr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", wsURL, err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
			}()

			fmt.Printf("connected to %s\n", wsURL)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				var obj map[string]any
				if json.Unmarshal(msg, &obj) != nil {
					fmt.Println(string(msg))
					continue
				}
				b, _ := json.MarshalIndent(obj, "", "  ")
				fmt.Println(string(b))
			}
		},
	}
}
