package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/server/internal/admin"
	"github.com/l1jgo/server/internal/config"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
	gonet "github.com/l1jgo/server/internal/net"
	"github.com/l1jgo/server/internal/net/packet"
	"github.com/l1jgo/server/internal/persist"
	"github.com/l1jgo/server/internal/script"
	"github.com/l1jgo/server/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("FIELDSERVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := persist.NewDB(ctx, cfg.Database, log)
	cancel()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = persist.RunMigrations(migrateCtx, db.Pool)
	migrateCancel()
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("資料庫遷移完成")

	accountRepo := persist.NewAccountRepo(db)
	charRepo := persist.NewCharacterRepo(db)

	catalogPath := "data/metadata.yaml"
	if p := os.Getenv("FIELDSERVER_METADATA"); p != "" {
		catalogPath = p
	}
	catalog, err := meta.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("load metadata catalogue: %w", err)
	}

	scripts, err := script.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("npc script engine: %w", err)
	}
	defer scripts.Close()

	skills := session.DefaultSkillHandlers()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	group, groupCtx := errgroup.WithContext(runCtx)
	rm := newRoomManager(groupCtx, group, cfg.Room, catalog, log)
	group.Go(func() error {
		rm.runClock()
		return nil
	})

	netServer, err := gonet.NewServer(cfg.Network.BindAddress, cfg.Network.InQueueSize, cfg.Network.OutQueueSize, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	go func() {
		for conn := range netServer.NewSessions() {
			go handleConnect(runCtx, conn, accountRepo, charRepo, catalog, skills, scripts, rm, log)
		}
	}()

	repl := admin.New(os.Stdin, os.Stdout, rm, catalog, log)
	go repl.Run()

	log.Info("伺服器就緒", zap.String("addr", netServer.Addr().String()))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("收到關閉信號", zap.String("signal", sig.String()))

	netServer.Shutdown()
	runCancel()
	if err := group.Wait(); err != nil {
		log.Error("room supervision exited with error", zap.Error(err))
	}
	log.Info("伺服器已停止")
	return nil
}

// handleConnect runs the login handshake for one freshly accepted
// connection and, on success, joins the resulting session to its
// character's home field room. Spec.md §1 marks the login/auth
// handshake an opaque external collaborator; this is the minimal
// concrete shape needed to exercise account/character persistence and
// the room runtime end to end, not a claim about the real client's
// handshake framing.
func handleConnect(ctx context.Context, conn *gonet.Session, accountRepo *persist.AccountRepo, charRepo *persist.CharacterRepo, catalog *meta.Catalog, skills map[ids.SkillId]session.SkillHandler, scripts *script.Engine, rm *roomManager, log *zap.Logger) {
	var data []byte
	select {
	case data = <-conn.InQueue:
	case <-time.After(15 * time.Second):
		conn.Close()
		return
	case <-ctx.Done():
		conn.Close()
		return
	}

	r := packet.NewReader(data)
	accountName := r.ReadS()
	password := r.ReadS()
	charName := r.ReadS()

	acct, err := accountRepo.CheckCredentials(ctx, accountName, password)
	if err != nil {
		log.Warn("login failed", zap.String("account", accountName), zap.Error(err))
		conn.Close()
		return
	}
	if acct == nil {
		acct, err = accountRepo.Create(ctx, accountName, password, conn.IP, "")
		if err != nil {
			log.Warn("account creation failed", zap.String("account", accountName), zap.Error(err))
			conn.Close()
			return
		}
	}

	row, err := charRepo.Get(ctx, charName)
	if err != nil {
		log.Warn("character lookup failed", zap.String("char", charName), zap.Error(err))
		conn.Close()
		return
	}
	if row == nil {
		row = &persist.CharacterRow{
			AccountName: acct.Name,
			Name:        charName,
			Level:       1,
			HP:          100,
			MaxHP:       100,
			MP:          50,
			MaxMP:       50,
			MapID:       1,
		}
		if err := charRepo.Create(ctx, row); err != nil {
			log.Warn("character creation failed", zap.String("char", charName), zap.Error(err))
			conn.Close()
			return
		}
	}

	skillRows, err := charRepo.LoadSkills(ctx, row.ID)
	if err != nil {
		log.Warn("skill load failed", zap.Int32("char_id", row.ID), zap.Error(err))
	}
	questRows, err := charRepo.LoadQuests(ctx, row.ID)
	if err != nil {
		log.Warn("quest load failed", zap.Int32("char_id", row.ID), zap.Error(err))
	}

	char := persist.CharacterFromRow(row, skillRows, questRows)
	conn.AccountName = accountName
	conn.CharName = charName

	sess := session.NewSession(conn, char, catalog, skills, scripts, log)
	if err := rm.Join(char.Field, sess); err != nil {
		log.Warn("room join failed", zap.Uint32("field", uint32(char.Field)), zap.Error(err))
		conn.Close()
		return
	}
	log.Info("player joined", zap.String("char", charName), zap.Uint32("field", uint32(char.Field)))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
