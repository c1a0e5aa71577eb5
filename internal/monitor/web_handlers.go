package monitor

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mcwatch/mcwatch/internal/history"
	"github.com/mcwatch/mcwatch/internal/probe"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	msgServerStatusHeading = &i18n.Message{ID: "server_status_heading", Other: "Server status"}
	msgLabelAddress        = &i18n.Message{ID: "label_address", Other: "Address"}
	msgLabelStatus         = &i18n.Message{ID: "label_status", Other: "Status"}
	msgLabelVersion        = &i18n.Message{ID: "label_version", Other: "Version"}
	msgLabelPlayers        = &i18n.Message{ID: "label_players", Other: "Players"}
	msgLabelLatency        = &i18n.Message{ID: "label_latency", Other: "Latency"}
	msgLabelDescription    = &i18n.Message{ID: "label_description", Other: "Description"}
	msgStatusOnline        = &i18n.Message{ID: "status_online", Other: "Online ✓"}
	msgServerAdded         = &i18n.Message{ID: "server_added", Other: "Server added to monitoring!"}
	msgErrEmptyAddress     = &i18n.Message{ID: "error_empty_address", Other: "No server address given"}
	msgErrInvalidAddress   = &i18n.Message{ID: "error_invalid_address", Other: "Invalid address format"}
	msgErrUnreachable      = &i18n.Message{ID: "error_unreachable", Other: "Server is not responding: {{.Error}}"}
	msgAddedJustNow        = &i18n.Message{ID: "added_just_now", Other: "just now"}
	msgAddedMinutesAgo     = &i18n.Message{
		ID:    "added_minutes_ago",
		One:   "{{.Minutes}} minute ago",
		Other: "{{.Minutes}} minutes ago",
	}
)

var resultFragment = template.Must(template.New("result").Parse(`<div class="server-stats" style="margin-top: 20px; padding: 15px; background: #f8f8f8; border-radius: 5px;">
    <h3>{{ .Heading }}</h3>
    <p><strong>{{ .AddressLabel }}:</strong> {{ .Address }}</p>
    <p><strong>{{ .StatusLabel }}:</strong> <span style="color: green; font-weight: bold;">{{ .OnlineLabel }}</span></p>
    <p><strong>{{ .VersionLabel }}:</strong> {{ .Version }}</p>
    <p><strong>{{ .PlayersLabel }}:</strong> {{ .Players }}</p>
    <p><strong>{{ .LatencyLabel }}:</strong> {{ .Latency }}</p>
    <p><strong>{{ .DescriptionLabel }}:</strong> {{ .Description }}</p>
    <p style="color: green; font-weight: bold;">{{ .AddedLabel }}</p>
</div>`))

var errorFragment = template.Must(template.New("error").Parse(
	`<div class="error" style="color:red; margin-top:20px;">{{ .Message }}</div>`))

type serverView struct {
	store.TrackedServer
	Players    string
	AddedLabel string
}

func (m *Monitor) addedLabel(added time.Time) string {
	minutes := int(time.Since(added).Minutes())
	if minutes <= 0 {
		return m.translator.Tr(msgAddedJustNow, 1, nil)
	}

	return m.translator.Tr(msgAddedMinutesAgo, minutes, map[string]interface{}{"Minutes": minutes})
}

func (m *Monitor) onlineFragment(result store.TrackedServer) (string, error) {
	var body bytes.Buffer

	errRender := resultFragment.Execute(&body, map[string]any{
		"Heading":          m.translator.Tr(msgServerStatusHeading, 1, nil),
		"AddressLabel":     m.translator.Tr(msgLabelAddress, 1, nil),
		"StatusLabel":      m.translator.Tr(msgLabelStatus, 1, nil),
		"OnlineLabel":      m.translator.Tr(msgStatusOnline, 1, nil),
		"VersionLabel":     m.translator.Tr(msgLabelVersion, 1, nil),
		"PlayersLabel":     m.translator.Tr(msgLabelPlayers, 1, nil),
		"LatencyLabel":     m.translator.Tr(msgLabelLatency, 1, nil),
		"DescriptionLabel": m.translator.Tr(msgLabelDescription, 1, nil),
		"AddedLabel":       m.translator.Tr(msgServerAdded, 1, nil),
		"Address":          result.Address,
		"Version":          result.Version,
		"Players":          fmt.Sprintf("%d/%d", result.PlayersOnline, result.PlayersMax),
		"Latency":          fmt.Sprintf("%.2f ms", result.LatencyMS),
		"Description":      result.Description,
	})
	if errRender != nil {
		return "", errors.Wrap(errRender, "Failed to render result fragment")
	}

	return body.String(), nil
}

func (m *Monitor) offlineFragment(result store.TrackedServer) (string, error) {
	var body bytes.Buffer

	errRender := errorFragment.Execute(&body, map[string]any{
		"Message": m.translator.Tr(msgErrUnreachable, 1, map[string]interface{}{"Error": result.Error}),
	})
	if errRender != nil {
		return "", errors.Wrap(errRender, "Failed to render error fragment")
	}

	return body.String(), nil
}

func getIndex(monitor *Monitor) gin.HandlerFunc {
	log := monitor.log.Named("index")

	return func(ctx *gin.Context) {
		servers, errLoad := monitor.dataStore.Load()
		if errLoad != nil {
			log.Error("Failed to load server list", zap.Error(errLoad))
			ctx.String(http.StatusInternalServerError, "")

			return
		}

		views := make([]serverView, 0, len(servers))
		for _, server := range servers {
			views = append(views, serverView{
				TrackedServer: server,
				Players:       fmt.Sprintf("%d/%d", server.PlayersOnline, server.PlayersMax),
				AddedLabel:    monitor.addedLabel(server.AddedTime),
			})
		}

		ctx.HTML(http.StatusOK, "index.html", gin.H{"Servers": views})
	}
}

func getAddServer() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.HTML(http.StatusOK, "add.html", gin.H{})
	}
}

func postAddServer(monitor *Monitor) gin.HandlerFunc {
	log := monitor.log.Named("addServer")

	return func(ctx *gin.Context) {
		address, errNormalize := probe.NormalizeAddress(ctx.PostForm("address"))
		if errNormalize != nil {
			message := msgErrInvalidAddress
			if errors.Is(errNormalize, probe.ErrEmptyAddress) {
				message = msgErrEmptyAddress
			}

			responseErr(ctx, http.StatusBadRequest, gin.H{"error": monitor.translator.Tr(message, 1, nil)})

			return
		}

		result := monitor.prober.Probe(ctx.Request.Context(), address)
		monitor.recordHistory(ctx.Request.Context(), result)

		if !result.Online() {
			fragment, errRender := monitor.offlineFragment(result)
			if errRender != nil {
				log.Error("Failed to render fragment", zap.Error(errRender))
				responseErr(ctx, http.StatusInternalServerError, nil)

				return
			}

			responseOK(ctx, http.StatusOK, gin.H{"error": fragment})

			return
		}

		result.AddedTime = time.Now()

		added, errAdd := monitor.dataStore.Add(result)
		if errAdd != nil {
			log.Error("Failed to store server", zap.String("address", address), zap.Error(errAdd))
			responseErr(ctx, http.StatusInternalServerError, nil)

			return
		}

		if added {
			log.Info("Added server", zap.String("address", address),
				zap.String("version", result.Version),
				zap.Int("players", result.PlayersOnline))

			monitor.hub.broadcast(wsEvent{Event: eventServerAdded, Payload: result})
		}

		fragment, errRender := monitor.onlineFragment(result)
		if errRender != nil {
			log.Error("Failed to render fragment", zap.Error(errRender))
			responseErr(ctx, http.StatusInternalServerError, nil)

			return
		}

		responseOK(ctx, http.StatusOK, gin.H{"html": fragment})
	}
}

func getServers(monitor *Monitor) gin.HandlerFunc {
	log := monitor.log.Named("servers")

	return func(ctx *gin.Context) {
		servers, errLoad := monitor.dataStore.Load()
		if errLoad != nil {
			log.Error("Failed to load server list", zap.Error(errLoad))
			responseErr(ctx, http.StatusInternalServerError, nil)

			return
		}

		responseOK(ctx, http.StatusOK, servers)
	}
}

func getVersion(monitor *Monitor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		responseOK(ctx, http.StatusOK, gin.H{
			"version": monitor.versionInfo,
			"uptime":  time.Since(monitor.startupTime).String(),
		})
	}
}

func getHistory(monitor *Monitor) gin.HandlerFunc {
	const defaultLimit = 50

	log := monitor.log.Named("history")

	return func(ctx *gin.Context) {
		if monitor.history == nil {
			responseErr(ctx, http.StatusNotFound, nil)

			return
		}

		address, errNormalize := probe.NormalizeAddress(ctx.Param("address"))
		if errNormalize != nil {
			responseErr(ctx, http.StatusBadRequest, nil)

			return
		}

		limit, errLimit := strconv.ParseUint(ctx.DefaultQuery("limit", strconv.Itoa(defaultLimit)), 10, 32)
		if errLimit != nil {
			responseErr(ctx, http.StatusBadRequest, nil)

			return
		}

		records, errFetch := monitor.history.Fetch(ctx, address, limit)
		if errFetch != nil {
			log.Error("Failed to fetch history", zap.String("address", address), zap.Error(errFetch))
			responseErr(ctx, http.StatusInternalServerError, nil)

			return
		}

		if records == nil {
			records = []history.ProbeRecord{}
		}

		responseOK(ctx, http.StatusOK, records)
	}
}
