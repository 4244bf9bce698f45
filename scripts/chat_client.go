package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

type serverConfig struct {
	Server struct {
		Addr          string `mapstructure:"addr"`
		WebsocketPath string `mapstructure:"ws_path"`
	} `mapstructure:"server"`
}

type outbound struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

func main() {
	configPath := flag.String("config", "", "gateway config used to find the listen address")
	target := flag.String("url", "", "websocket url; overrides -config")
	text := flag.String("text", "", "utterance to send as a text message")
	audioPath := flag.String("audio", "", "raw audio file to send as one binary message")
	outPath := flag.String("out", "reply.pcm", "file for the synthesized reply audio")
	wait := flag.Duration("wait", 15*time.Second, "how long to wait for the reply")
	flag.Parse()
	if *text == "" && *audioPath == "" {
		fmt.Println("usage: chat_client [-config=config.yaml | -url=ws://host/ws/chat] -text=hello | -audio=file.pcm")
		os.Exit(1)
	}

	wsURL := *target
	if wsURL == "" {
		var err error
		wsURL, err = urlFromConfig(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			os.Exit(1)
		}
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if *text != "" {
		msg, _ := json.Marshal(map[string]string{"type": "text", "text": *text})
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			fmt.Println("send error:", err)
			os.Exit(1)
		}
	}
	if *audioPath != "" {
		data, err := os.ReadFile(*audioPath)
		if err != nil {
			fmt.Println("audio error:", err)
			os.Exit(1)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			fmt.Println("send error:", err)
			os.Exit(1)
		}
	}

	var audio []byte
	deadline := time.Now().Add(*wait)
	for {
		_ = conn.SetReadDeadline(deadline)
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind == websocket.BinaryMessage {
			audio = append(audio, data...)
			// the reply audio ends when chunks stop arriving
			deadline = time.Now().Add(time.Second)
			continue
		}
		var msg outbound
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Println("bad frame:", string(data))
			continue
		}
		switch msg.Type {
		case "ping":
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		case "error":
			fmt.Println("error:", msg.Error)
		default:
			fmt.Printf("%s: %s\n", msg.Type, msg.Text)
		}
	}
	if len(audio) > 0 {
		if err := os.WriteFile(*outPath, audio, 0o644); err != nil {
			fmt.Println("write error:", err)
			os.Exit(1)
		}
		fmt.Printf("audio: %d bytes -> %s\n", len(audio), *outPath)
	}
}

func urlFromConfig(path string) (string, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.ws_path", "/ws/chat")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", err
		}
	}
	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return "", err
	}
	host := cfg.Server.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	u := url.URL{Scheme: "ws", Host: host, Path: cfg.Server.WebsocketPath}
	return u.String(), nil
}
