package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tandem/collab/internal/archive"
	"tandem/collab/internal/collab"
	"tandem/collab/internal/config"
	"tandem/collab/internal/email"
	"tandem/collab/internal/export"
	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
	"tandem/collab/internal/search"
	"tandem/collab/internal/transport"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	store, err := kv.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("store connection failed: %v", err)
	}
	defer store.Close()

	var tp transport.Transport
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisTransport, err := transport.NewRedisTransport(cfg.RedisURL, cfg.SessionID)
		if err != nil {
			log.Fatalf("transport connection failed: %v", err)
		}
		defer redisTransport.Close()
		tp = redisTransport
	} else {
		log.Printf("no redis configured, running without realtime sync")
	}

	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient)
	} else {
		searchService = search.NewService(nil)
	}

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	snapArchive, err := archive.NewArchiveFromConfig(cfg)
	if err != nil {
		log.Fatalf("archive setup failed: %v", err)
	}

	self := model.User{ID: cfg.UserID, Name: cfg.UserName, Color: cfg.UserColor}
	session, err := collab.NewSession(collab.Options{
		SessionID: cfg.SessionID,
		Secret:    []byte(cfg.SessionSecret),
		Self:      self,
		Store:     store,
		Transport: tp,
		Search:    searchService,
		Email:     emailService,
		Archive:   snapArchive,
	})
	if err != nil {
		log.Fatalf("session setup failed: %v", err)
	}
	session.RegisterCollaborator(self, cfg.UserEmail)
	session.History.SetCaps(cfg.MaxSnapshots, cfg.PersistSnapshots)

	if strings.TrimSpace(cfg.WorkspaceDir) != "" {
		workspaceDir := cfg.WorkspaceDir
		session.History.StartAutoSave(func() []model.FileNode {
			files, err := model.ReadTree(workspaceDir)
			if err != nil {
				log.Printf("autosave: read workspace %s: %v", workspaceDir, err)
				return nil
			}
			return files
		}, session.Self, session.ID, cfg.AutoSaveInterval)
		log.Printf("autosave armed for %s every %v", workspaceDir, cfg.AutoSaveInterval)
	} else {
		log.Printf("no workspace configured, autosave disabled")
	}

	if err := session.Start(ctx); err != nil {
		log.Fatalf("session start failed: %v", err)
	}
	log.Printf("Tandem session %s joined as %s", cfg.SessionID, self.ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if strings.TrimSpace(cfg.ReportDir) != "" {
		writeReport(cfg, session)
	}
	session.Close()
}

// writeReport renders a final session report on shutdown so a relay run
// leaves a reviewable artifact behind.
func writeReport(cfg config.Config, session *collab.Session) {
	result, err := export.NewService(session).Export(export.Request{
		SessionID:          cfg.SessionID,
		Format:             export.Format(cfg.ReportFormat),
		IncludeResolved:    true,
		IncludeSuggestions: true,
		IncludeSnapshots:   true,
	})
	if err != nil {
		log.Printf("shutdown report failed: %v", err)
		return
	}
	path := filepath.Join(cfg.ReportDir, result.Filename)
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		log.Printf("write shutdown report: %v", err)
		return
	}
	log.Printf("session report written to %s", path)
}
