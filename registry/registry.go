// Package registry announces this service to the home-page dashboard by
// upserting its definition into the dashboard's services file.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Pawfulness/umamusume-tracker/config"

	"github.com/fsnotify/fsnotify"
)

// Service is one entry in the dashboard's services file.
type Service struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	URL            string    `json:"url"`
	APIURL         string    `json:"apiUrl"`
	Type           string    `json:"type"`
	Icon           string    `json:"icon"`
	LastRegistered time.Time `json:"lastRegistered"`
}

type Registrar struct {
	path string
	def  Service
}

func NewRegistrar(cfg *config.Config) *Registrar {
	return &Registrar{
		path: cfg.RegistryFile,
		def: Service{
			ID:          "umamusume-tracker",
			Name:        "Umamusume Events",
			Description: "Global server banners and events",
			URL:         cfg.ServiceURL,
			APIURL:      cfg.ServiceURL + "/api/events",
			Type:        "split-slide",
			Icon:        "horse-head",
		},
	}
}

// Register upserts this service's definition into the services file.
func (r *Registrar) Register() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read services file: %w", err)
	}

	var services []Service
	if err := json.Unmarshal(data, &services); err != nil {
		return fmt.Errorf("parse services file: %w", err)
	}

	def := r.def
	def.LastRegistered = time.Now()

	updated := false
	for i, svc := range services {
		if svc.ID == def.ID {
			services[i] = def
			updated = true
			break
		}
	}
	if !updated {
		services = append(services, def)
	}

	out, err := json.MarshalIndent(services, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path, out, 0o644); err != nil {
		return fmt.Errorf("write services file: %w", err)
	}

	log.Println("Service registered successfully")
	return nil
}

// registered reports whether our entry is present in the services file.
func (r *Registrar) registered() bool {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return false
	}
	var services []Service
	if err := json.Unmarshal(data, &services); err != nil {
		return false
	}
	for _, svc := range services {
		if svc.ID == r.def.ID {
			return true
		}
	}
	return false
}

// Watch re-registers the service when the dashboard rewrites its services
// file and drops our entry (for example after the dashboard regenerates it
// from scratch). Our own upsert also fires a write event; it is a no-op
// because the entry is present.
func (r *Registrar) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors and the dashboard replace the file by
	// rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != r.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if r.registered() {
					continue
				}
				log.Printf("[WARN] Registration lost from %s, re-registering", r.path)
				if err := r.Register(); err != nil {
					log.Printf("[ERROR] Failed to re-register service: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] Services file watcher error: %v", err)
			}
		}
	}()

	return nil
}
