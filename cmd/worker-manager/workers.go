// cmd/worker-manager/workers.go
package main

import (
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dealflow-workers/internal/common/camunda"
	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/logger"

	// Valuation Workers (3)
	elv "dealflow-workers/internal/workers/valuation/estimate-listing-valuation"
	gvn "dealflow-workers/internal/workers/valuation/generate-valuation-narrative"
	pla "dealflow-workers/internal/workers/valuation/persist-listing-analysis"

	// Lead Workers (2)
	cf "dealflow-workers/internal/workers/leads/calculate-financing"
	cvl "dealflow-workers/internal/workers/leads/capture-valuation-lead"

	// Notification & Search Workers (2)
	ilv "dealflow-workers/internal/workers/search/index-listing-valuation"
	svn "dealflow-workers/internal/workers/notifications/send-valuation-notification"
)

func registerWorkers(cfg *config.Config, zeebe *camunda.Client, deps *collaborators, log logger.Logger) ([]worker.JobWorker, error) {
	client := zeebe.GetClient()
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.JobHandler) {
		workers = append(workers, camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), handler, log))
	}

	// --- 1. Valuation Workers ---
	elvCfg, err := elv.LoadConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s config: %w", elv.TaskType, err)
	}
	start(elv.TaskType, elv.NewHandler(elvCfg, deps.store, log))
	start(pla.TaskType, pla.NewHandler(pla.LoadConfig(cfg), deps.store, deps.pg.DB, log))

	start(gvn.TaskType, gvn.NewHandler(gvn.LoadConfig(cfg), deps.generator, deps.store, log))

	// --- 2. Lead Workers ---
	start(cf.TaskType, cf.NewHandler(cf.LoadConfig(cfg), log))

	cvlCfg, err := cvl.LoadConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s config: %w", cvl.TaskType, err)
	}
	var crm cvl.CRMClient
	if deps.crm != nil {
		crm = deps.crm
	}
	start(cvl.TaskType, cvl.NewHandler(cvlCfg, deps.pg.DB, crm, log))

	// --- 3. Notification Worker ---
	// Nil clients must reach the handler as nil interfaces.
	var (
		email svn.EmailSender
		sms   svn.TopicPublisher
		chat  svn.ChatPoster
	)
	if deps.ses != nil {
		email = deps.ses
	}
	if deps.sns != nil {
		sms = deps.sns
	}
	if deps.chat != nil {
		chat = deps.chat
	}
	start(svn.TaskType, svn.NewHandler(svn.LoadConfig(cfg), email, sms, chat, log))

	// --- 4. Search Worker ---
	if deps.es != nil {
		start(ilv.TaskType, ilv.NewHandler(ilv.LoadConfig(cfg), deps.es.Client, log))
	} else {
		log.Info("worker disabled", map[string]interface{}{
			"taskType": ilv.TaskType,
			"reason":   "elasticsearch not configured",
		})
	}

	return workers, nil
}
