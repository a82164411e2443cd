// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/journal"
	"github.com/bureau-foundation/partition/lib/codec"
	"github.com/bureau-foundation/partition/lib/service"
	"github.com/bureau-foundation/partition/lib/version"
	"github.com/bureau-foundation/partition/proxy"
	"github.com/bureau-foundation/partition/sheap"
)

// Management action names.
const (
	ActionStatus         = "status"
	ActionRegisterDomain = "register_domain"
	ActionUpdateDomain   = "update_domain"
	ActionReloadDomain   = "reload_domain"
	ActionListDomains    = "list_domains"
	ActionListImages     = "list_images"
	ActionListCrashes    = "list_crashes"
	ActionHeapStats      = "heap_stats"
)

// RegisterActions installs the management actions on server.
func (k *Kernel) RegisterActions(server *service.SocketServer) {
	server.Handle(ActionStatus, k.handleStatus)
	server.Handle(ActionRegisterDomain, k.handleRegisterDomain)
	server.Handle(ActionUpdateDomain, k.handleUpdateDomain)
	server.Handle(ActionReloadDomain, k.handleReloadDomain)
	server.Handle(ActionListDomains, k.handleListDomains)
	server.Handle(ActionListImages, k.handleListImages)
	server.Handle(ActionListCrashes, k.handleListCrashes)
	server.Handle(ActionHeapStats, k.handleHeapStats)
}

// StatusResponse answers "status".
type StatusResponse struct {
	Version       string  `cbor:"version" json:"version"`
	UptimeSeconds float64 `cbor:"uptime_seconds" json:"uptime_seconds"`
	Domains       int     `cbor:"domains" json:"domains"`
	Inactive      int     `cbor:"inactive" json:"inactive"`
	Harts         int     `cbor:"harts" json:"harts"`
	HartDepths    []int   `cbor:"hart_depths" json:"hart_depths"`
	Journal       bool    `cbor:"journal" json:"journal"`
}

func (k *Kernel) handleStatus(context.Context, []byte) (any, error) {
	records := k.registry.List()
	inactive := 0
	for _, record := range records {
		if !record.Active() {
			inactive++
		}
	}
	return StatusResponse{
		Version:       version.Info(),
		UptimeSeconds: k.Uptime().Seconds(),
		Domains:       len(records),
		Inactive:      inactive,
		Harts:         k.harts.Len(),
		HartDepths:    k.harts.Depths(),
		Journal:       k.journal != nil,
	}, nil
}

// RegisterRequest is the body of "register_domain".
type RegisterRequest struct {
	Source string      `cbor:"source"`
	Kind   domain.Kind `cbor:"kind"`
	Name   string      `cbor:"name,omitempty"`
}

// RegisterResponse answers "register_domain" with the name the domain
// was registered under.
type RegisterResponse struct {
	Name string `cbor:"name" json:"name"`
	ID   uint64 `cbor:"id" json:"id"`
}

func (k *Kernel) handleRegisterDomain(ctx context.Context, raw []byte) (any, error) {
	var request RegisterRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	if request.Source == "" {
		return nil, errors.New("missing required field: source")
	}
	name, err := k.loader.RegisterDomain(k.Context(ctx), request.Source, request.Kind, request.Name)
	if err != nil {
		return nil, err
	}
	response := RegisterResponse{Name: name}
	if record, ok := k.registry.Lookup(name); ok {
		response.ID = record.ID()
	}
	return response, nil
}

// UpdateRequest is the body of "update_domain".
type UpdateRequest struct {
	Target      string      `cbor:"target"`
	Replacement string      `cbor:"replacement"`
	Kind        domain.Kind `cbor:"kind"`
}

func (k *Kernel) handleUpdateDomain(ctx context.Context, raw []byte) (any, error) {
	var request UpdateRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	if request.Target == "" || request.Replacement == "" {
		return nil, errors.New("missing required fields: target and replacement")
	}
	if err := k.loader.UpdateDomain(k.Context(ctx), request.Target, request.Replacement, request.Kind); err != nil {
		return nil, err
	}
	return k.describe(request.Target)
}

// NameRequest is the body of actions addressing one domain.
type NameRequest struct {
	Name string `cbor:"name"`
}

func (k *Kernel) handleReloadDomain(ctx context.Context, raw []byte) (any, error) {
	var request NameRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	if request.Name == "" {
		return nil, errors.New("missing required field: name")
	}
	if err := k.registry.Reload(k.Context(ctx), request.Name); err != nil {
		return nil, err
	}
	return k.describe(request.Name)
}

// DomainInfo describes one registry record.
type DomainInfo struct {
	Name       string       `cbor:"name" json:"name"`
	ID         uint64       `cbor:"id" json:"id"`
	Kind       domain.Kind  `cbor:"kind" json:"kind"`
	Active     bool         `cbor:"active" json:"active"`
	Generation int          `cbor:"generation" json:"generation"`
	Created    time.Time    `cbor:"created" json:"created"`
	Updated    time.Time    `cbor:"updated" json:"updated"`
	Image      string       `cbor:"image,omitempty" json:"image,omitempty"`
	Source     string       `cbor:"source,omitempty" json:"source,omitempty"`
	Digest     string       `cbor:"digest,omitempty" json:"digest,omitempty"`
	Owned      int          `cbor:"owned" json:"owned"`
	Stats      *proxy.Stats `cbor:"stats,omitempty" json:"stats,omitempty"`
}

// Domains describes every registry record, sorted by name.
func (k *Kernel) Domains() []DomainInfo {
	images := k.loader.Domains()
	records := k.registry.List()
	infos := make([]DomainInfo, 0, len(records))
	for _, record := range records {
		info := DomainInfo{
			Name:       record.Name,
			ID:         record.ID(),
			Kind:       record.Kind,
			Active:     record.Active(),
			Generation: record.Generation,
			Created:    record.Created,
			Updated:    record.Updated,
			Owned:      k.heap.OwnedBy(record.ID()),
		}
		// A hot update puts another domain's instance behind this
		// name, so report the image of whichever domain id is current.
		for _, loadedDomain := range images {
			if loadedDomain.ID == info.ID {
				info.Image = loadedDomain.Image
				info.Source = loadedDomain.Source
				info.Digest = loadedDomain.Digest
				break
			}
		}
		if controller, ok := proxy.ControllerOf(record.Handle); ok {
			stats := controller.Stats()
			info.Stats = &stats
		}
		infos = append(infos, info)
	}
	return infos
}

func (k *Kernel) describe(name string) (DomainInfo, error) {
	for _, info := range k.Domains() {
		if info.Name == name {
			return info, nil
		}
	}
	return DomainInfo{}, fmt.Errorf("domain %q vanished from the registry", name)
}

func (k *Kernel) handleListDomains(context.Context, []byte) (any, error) {
	return k.Domains(), nil
}

// ImageInfo describes one catalog image.
type ImageInfo struct {
	Name        string      `cbor:"name" json:"name"`
	Kind        domain.Kind `cbor:"kind" json:"kind"`
	Description string      `cbor:"description,omitempty" json:"description,omitempty"`
}

func (k *Kernel) handleListImages(context.Context, []byte) (any, error) {
	images := k.loader.Catalog().Images()
	infos := make([]ImageInfo, len(images))
	for i, image := range images {
		infos[i] = ImageInfo{Name: image.Name, Kind: image.Kind, Description: image.Description}
	}
	return infos, nil
}

// CrashesRequest is the body of "list_crashes".
type CrashesRequest struct {
	Domain string    `cbor:"domain,omitempty"`
	Since  time.Time `cbor:"since,omitempty"`
	Limit  int       `cbor:"limit,omitempty"`
}

// CrashEntry is one crash in a "list_crashes" answer. ID is zero for
// records served from memory.
type CrashEntry struct {
	ID     int64        `cbor:"id,omitempty" json:"id,omitempty"`
	Record crash.Record `cbor:"record" json:"record"`
}

func (k *Kernel) handleListCrashes(ctx context.Context, raw []byte) (any, error) {
	var request CrashesRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	return k.Crashes(ctx, journal.Query{Domain: request.Domain, Since: request.Since, Limit: request.Limit})
}

// Crashes returns recorded crashes, newest first. The journal answers
// when it is enabled, otherwise the in-memory list does.
func (k *Kernel) Crashes(ctx context.Context, query journal.Query) ([]CrashEntry, error) {
	if k.journal != nil {
		entries, err := k.journal.List(ctx, query)
		if err != nil {
			return nil, err
		}
		crashes := make([]CrashEntry, len(entries))
		for i, entry := range entries {
			crashes[i] = CrashEntry{ID: entry.ID, Record: entry.Record}
		}
		return crashes, nil
	}

	limit := query.Limit
	if limit <= 0 {
		limit = journal.DefaultListLimit
	}
	records := k.recent.Records()
	var crashes []CrashEntry
	for i := len(records) - 1; i >= 0 && len(crashes) < limit; i-- {
		record := records[i]
		if query.Domain != "" && record.Domain != query.Domain {
			continue
		}
		if !query.Since.IsZero() && record.Time.Before(query.Since) {
			continue
		}
		crashes = append(crashes, CrashEntry{Record: record})
	}
	return crashes, nil
}

// HeapResponse answers "heap_stats".
type HeapResponse struct {
	Stats   sheap.Stats       `cbor:"stats" json:"stats"`
	ByOwner map[uint64]int    `cbor:"by_owner" json:"by_owner"`
	Names   map[uint64]string `cbor:"names" json:"names"`
}

func (k *Kernel) handleHeapStats(context.Context, []byte) (any, error) {
	return k.HeapStats(), nil
}

// HeapStats summarizes the shared heap, with live allocation counts
// per owning domain.
func (k *Kernel) HeapStats() HeapResponse {
	response := HeapResponse{
		Stats:   k.heap.Stats(),
		ByOwner: make(map[uint64]int),
		Names:   map[uint64]string{sheap.KernelDomain: "kernel"},
	}
	for _, record := range k.registry.List() {
		id := record.ID()
		if _, named := response.Names[id]; !named {
			response.Names[id] = record.Name
		}
		if count := k.heap.OwnedBy(id); count > 0 {
			response.ByOwner[id] = count
		}
	}
	if count := k.heap.OwnedBy(sheap.KernelDomain); count > 0 {
		response.ByOwner[sheap.KernelDomain] = count
	}
	return response
}

func decodeRequest(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

