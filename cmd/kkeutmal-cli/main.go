package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/park285/kkeutmal-client/internal/config"
	"github.com/park285/kkeutmal-client/internal/dictsvc"
	"github.com/park285/kkeutmal-client/internal/msgcat"
	"github.com/park285/kkeutmal-client/internal/obslog"
	"github.com/park285/kkeutmal-client/internal/session"
	"github.com/park285/kkeutmal-client/internal/tabsync"
	"github.com/park285/kkeutmal-client/internal/wsconn"
	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: kkeutmal-cli <room-id>")
		os.Exit(2)
	}
	roomID := strings.TrimSpace(os.Args[1])

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	var coord *tabsync.Coordinator
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opt)
		coord = tabsync.NewCoordinator(rdb, logger)
		if err := coord.Start(context.Background()); err != nil {
			log.Fatalf("tabsync start error: %v", err)
		}
		defer coord.Close()
	}

	dict := dictsvc.NewClient(cfg.APIBaseURL)

	conn := wsconn.NewManager(cfg.WSBaseURL, wsconn.Options{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		BackoffBase: cfg.ReconnectBase,
		BackoffCap:  cfg.ReconnectCap,
		Heartbeat:   cfg.HeartbeatInterval,
	}, logger)

	f := session.New(conn, coord, dict, session.Config{
		UserID:   cfg.UserID,
		Nickname: cfg.Nickname,
		TurnTick: cfg.TurnTick,
	}, logger)

	registerRenderers(f, cat, cfg)

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := f.Join(cctx, roomID, cfg.AuthToken); err != nil {
		cancel()
		logger.Warn("initial_connect_failed", zap.Error(err))
	} else {
		cancel()
	}

	go inputLoop(f, cfg, roomID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = f.Leave(ctx)
}

func registerRenderers(f *session.Facade, cat *msgcat.Catalog, cfg *appcfg.AppConfig) {
	render := func(key string, data map[string]any) string {
		out, err := cat.Render(key, data)
		if err != nil {
			return ""
		}
		return out
	}

	f.On(session.TagConnectionState, func(_ string, _ session.Snapshot) {
		st := f.ConnectionStatus()
		switch {
		case st.AuthRejected:
			fmt.Println(render("conn.auth_rejected", nil))
		case st.Exhausted:
			fmt.Println(render("conn.exhausted", nil))
		case st.Reconnecting:
			fmt.Println(render("conn.reconnecting", map[string]any{"Attempt": st.Attempts, "Max": cfg.ReconnectMaxAttempts}))
		case st.State == wsconn.StateOpen:
			fmt.Println(render("conn.open", nil))
		}
	})

	f.On(gamedto.EventGameStarted, func(_ string, snap session.Snapshot) {
		fmt.Println(render("game.started", map[string]any{"StartChar": snap.RequiredLeadChar}))
	})

	f.On(gamedto.EventWordSubmitted, func(_ string, snap session.Snapshot) {
		if len(snap.WordChain) == 0 {
			return
		}
		last := snap.WordChain[len(snap.WordChain)-1]
		fmt.Println(render("game.word_accepted", map[string]any{
			"Nickname": nicknameOf(snap, last.PlayerID), "Word": last.Word,
		}))
		if snap.CurrentTurnPlayerID == cfg.UserID {
			fmt.Println(render("game.your_turn", map[string]any{"RequiredChar": snap.RequiredLeadChar}))
		}
	})

	f.On(gamedto.EventNextRoundStarting, func(_ string, snap session.Snapshot) {
		fmt.Println(render("game.next_round", map[string]any{
			"Round": snap.CurrentRound, "StartChar": snap.RequiredLeadChar,
		}))
	})

	f.On(gamedto.EventGameCompleted, func(_ string, snap session.Snapshot) {
		fmt.Println(render("game.finished", map[string]any{"Winner": topScorer(snap)}))
	})

	f.On(gamedto.EventChat, func(_ string, snap session.Snapshot) {
		if len(snap.Chat) == 0 {
			return
		}
		line := snap.Chat[len(snap.Chat)-1]
		fmt.Printf("[%s] %s\n", line.Nickname, line.Message)
	})

	f.On(session.TagDuplicateSession, func(_ string, _ session.Snapshot) {
		fmt.Println(render("session.duplicate", nil))
	})

	f.On(session.TagSessionYielded, func(_ string, _ session.Snapshot) {
		fmt.Println(render("session.yielded", nil))
	})

	f.On(session.TagSnapshotUpdated, func(_ string, snap session.Snapshot) {
		if snap.Advisory != nil {
			fmt.Println("⚠ " + snap.Advisory.Message)
		}
	})
}

func inputLoop(f *session.Facade, cfg *appcfg.AppConfig, roomID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = f.Leave(ctx)
			cancel()
			os.Exit(0)
		case line == "/ready":
			_ = f.ToggleReady(true)
		case line == "/start":
			_ = f.StartGame()
		case line == "/takeover":
			_ = f.TakeOver(context.Background())
		case line == "/yield":
			_ = f.Yield(context.Background())
		case line == "/reconnect":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = f.Join(ctx, roomID, cfg.AuthToken)
			cancel()
		case strings.HasPrefix(line, "/chat "):
			_ = f.SendChat(strings.TrimPrefix(line, "/chat "))
		default:
			if res := f.ValidateWord(line); !res.OK {
				fmt.Println("⚠ " + res.Message)
				continue
			}
			if _, err := f.SubmitWord(line); err == wsconn.ErrNotConnected {
				fmt.Println("⚠ 연결되어 있지 않습니다.")
			}
		}
	}
}

func nicknameOf(snap session.Snapshot, playerID string) string {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return p.Nickname
		}
	}
	return playerID
}

func topScorer(snap session.Snapshot) string {
	best, bestScore := "", -1
	for id, score := range snap.Scores {
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return nicknameOf(snap, best)
}
