// Command feedclient connects to the progress websocket and prints every
// message it receives.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"TH_treasure_hunt/internal/api"
	"TH_treasure_hunt/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	server := pflag.String("url", "ws://localhost:8888/api/v1/ws", "websocket endpoint")
	initData := pflag.String("init-data", "", "telegram init data; built from --participant when empty")
	participant := pflag.Int64("participant", 5060715466, "telegram user id for servers running with telegramAuth.debug")
	huntID := pflag.Int64("hunt", 0, "request the clue state of this hunt after connecting")
	index := pflag.Int("index", 1, "clue index for --hunt")
	pflag.Parse()

	if err := logger.Initialize("info"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Logger()

	data := *initData
	if data == "" {
		values := url.Values{}
		values.Set("auth_date", fmt.Sprint(time.Now().Unix()))
		values.Set("user", fmt.Sprintf(`{"id":%d}`, *participant))
		data = values.Encode()
	}

	header := http.Header{}
	header.Add("Authorization", "Telegram "+data)

	conn, _, err := websocket.DefaultDialer.Dial(*server, header)
	if err != nil {
		log.Fatal("dial failed", zap.String("url", *server), zap.Error(err))
	}
	defer conn.Close()

	if *huntID > 0 {
		payload, err := json.Marshal(api.ClueStateMessage{HuntID: *huntID, Index: *index})
		if err != nil {
			log.Fatal("failed to encode request", zap.Error(err))
		}
		out, err := json.Marshal(api.Message{Type: api.MessageClueState, Payload: payload})
		if err != nil {
			log.Fatal("failed to encode request", zap.Error(err))
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			log.Fatal("write failed", zap.Error(err))
		}
	}

	messages := make(chan []byte)

	go func() {
		defer close(messages)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Info("read stopped", zap.Error(err))
				return
			}
			messages <- p
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case message, ok := <-messages:
			if !ok {
				return
			}
			var pretty any
			if err := json.Unmarshal(message, &pretty); err != nil {
				fmt.Printf("%s\n", message)
				continue
			}
			indented, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("%s\n", indented)
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
