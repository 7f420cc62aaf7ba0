package venuebot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	// logEmbedColor is discord's 'orange', used for log channel embeds
	logEmbedColor = 0xE67E22

	// historyScanLimit is how many recent channel messages are scanned
	// when the stored control message ID no longer resolves
	historyScanLimit = 50

	// purgeBatchLimit is the page size used when purging the host channel
	purgeBatchLimit = 100

	// unmuteCountdownSeconds is the delay announced before the unmute
	// trigger takes effect on the conference machine
	unmuteCountdownSeconds = 8

	// temporaryEmbedDelay is how long ephemeral confirmation embeds
	// remain before deletion
	temporaryEmbedDelay = 5 * time.Second

	hostChannelEnabledName  = "〔🟢〕hostbot"
	hostChannelDisabledName = "〔🔴〕hostbot-disabled"

	roomStartedPrefix  = "🟢️・"
	roomClosedPrefix   = "🔴️・"
	roomShutdownNotice = "(update-new-room-info)"
)

// Component custom IDs. The prefix groups them by panel.
const (
	customIDSelfAssignCohost = "host:self_cohost"
	customIDUpdateZoomName   = "host:update_zoom_name"
	customIDOpenOps          = "host:ops"
	customIDUnmute           = "host:unmute"

	customIDUnmuteConfirm = "unmute:confirm"
	customIDUnmuteCancel  = "unmute:cancel"

	customIDOpsAssignCohost = "ops:assign_cohost"
	customIDOpsAssignHost   = "ops:assign_host"
	customIDOpsRevokeCohost = "ops:revoke_cohost"
	customIDOpsReclaimHost  = "ops:reclaim_host"
	customIDOpsNextTrack    = "ops:next_track"
	customIDOpsRoomStarted  = "ops:room_started"
	customIDOpsRoomClosed   = "ops:room_closed"
	customIDOpsRoomShutdown = "ops:room_shutdown"
	customIDOpsUpdateRoom   = "ops:update_room_info"
	customIDOpsEnableHost   = "ops:enable_host_command"
	customIDOpsDisableHost  = "ops:disable_host_command"
	customIDOpsMaintenance  = "ops:maintenance"

	customIDMaintTitle       = "maint:embed_title"
	customIDMaintBody        = "maint:embed_body"
	customIDMaintThumbnail   = "maint:embed_thumbnail"
	customIDMaintFooter      = "maint:embed_footer"
	customIDMaintColor       = "maint:embed_color"
	customIDMaintRefresh     = "maint:refresh_embed"
	customIDMaintRefreshRate = "maint:refresh_rate"
	customIDMaintQueueDelay  = "maint:queue_delay"
	customIDMaintBackend     = "maint:storage_backend"
	customIDMaintBack        = "maint:back"
)

// Modal custom IDs. The ops zoom-name modal carries the target member ID
// as a suffix.
const (
	modalIDZoomName      = "modal:zoom_name"
	modalIDOpsZoomName   = "modal:ops_zoom_name"
	modalIDAssignCohost  = "modal:assign_cohost"
	modalIDAssignHost    = "modal:assign_host"
	modalIDRevokeCohost  = "modal:revoke_cohost"
	modalIDRoomNumber    = "modal:room_number"
	modalIDEmbedTitle    = "modal:embed_title"
	modalIDEmbedBody     = "modal:embed_body"
	modalIDThumbnail     = "modal:embed_thumbnail"
	modalIDFooter        = "modal:embed_footer"
	modalIDColor         = "modal:embed_color"
	modalIDRefreshRate   = "modal:refresh_rate"
	modalIDQueueDelay    = "modal:queue_delay"

	modalInputZoomName = "zoom_name"
	modalInputValue    = "value"
)

// Slash command names
const (
	DiscordSlashCommandEmbedHostCommand = "embed-host-command"
	DiscordSlashCommandEmbedHostbot     = "embed-hostbot"
	DiscordSlashCommandUpdateRoomInfo   = "update-room-info"
	DiscordSlashCommandOpsAssignZoom    = "ops-assign-zoom-name"
)

// triggerActionSpec describes a synchronous TriggerCMD action wired to a
// button or modal. Queued co-host assignment doesn't use this - it goes
// through the request queue.
type triggerActionSpec struct {
	action     TriggerAction
	needsName  bool
	successMsg string
	failureMsg string
}

// syncTriggerSpecs maps custom IDs of components that fire a trigger
// immediately (no queue) to their action.
var syncTriggerSpecs = map[string]triggerActionSpec{
	customIDOpsReclaimHost: {
		action:     TriggerActionReclaim,
		successMsg: "Reclaim host command sent",
		failureMsg: "Failed to send reclaim host command",
	},
	customIDOpsNextTrack: {
		action:     TriggerActionNextTrack,
		successMsg: "Next track command sent",
		failureMsg: "Failed to send next track command",
	},
	modalIDAssignHost: {
		action:     TriggerActionHost,
		needsName:  true,
		successMsg: "Host assigned to %s",
		failureMsg: "Failed to send host command",
	},
	modalIDRevokeCohost: {
		action:     TriggerActionRevoke,
		needsName:  true,
		successMsg: "Co-host revoked for %s",
		failureMsg: "Failed to send revoke command",
	},
}

// Discord manages the discord session, the interaction handlers, and the
// host control message lifecycle.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	applicationID               string
	botUserID                   string
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()

	// postMu serializes delete/repost of the control message so two
	// refresh paths can't race each other
	postMu sync.Mutex

	bot *VenueBot
}

func newDiscord(config *DiscordConfig) (*Discord, error) {
	if config == nil {
		return nil, fmt.Errorf("nil discord config")
	}
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}, nil
}

// newSession initializes the underlying discordgo session.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = false
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}
	return session, nil
}

// initSession creates the session (if needed) and attaches the gateway
// handlers.
func (d *Discord) initSession(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	if d.session == nil {
		session, err := d.newSession()
		if err != nil {
			return err
		}
		d.session = session
	}

	d.removeHandlers()
	d.discordgoRemoveHandlerFuncs = []func(){
		d.session.AddHandler(d.handlerReady(ctx)),
		d.session.AddHandler(d.handlerConnect()),
		d.session.AddHandler(d.handlerDisconnect()),
		d.session.AddHandler(
			func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					d.handleInteraction(ctx, i)
				}()
			},
		),
		d.session.AddHandler(
			func(_ *discordgo.Session, m *discordgo.MessageCreate) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					d.handleChannelMessage(ctx, m)
				}()
			},
		),
	}
	return nil
}

func (d *Discord) removeHandlers() {
	for _, h := range d.discordgoRemoveHandlerFuncs {
		h()
	}
	d.discordgoRemoveHandlerFuncs = nil
}

func (d *Discord) handlerReady(ctx context.Context) func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			d.botUserID = r.User.ID
			d.applicationID = r.Application.ID
		}
		d.logger.Info(
			"Ready",
			"session_id", r.SessionID,
			"user_id", d.botUserID,
		)
		d.sendLogEmbed(ctx, "VenueBot is online and ready.", "", "")
	}
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(_ *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		d.logger.Info("Connected")
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)
		d.logger.Info("disconnected")
	}
}

// handleChannelMessage treats any non-bot message in the host channel as
// a candidate base64 identity token. Valid tokens are queued; anything
// else is reported to the log channel.
func (d *Discord) handleChannelMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.botUserID || m.Author.Bot {
		return
	}
	if m.ChannelID != d.config.ChannelID {
		return
	}
	encoded := strings.TrimSpace(m.Content)
	if encoded == "" {
		return
	}
	if _, err := DecodeName(encoded); err != nil {
		d.logger.InfoContext(
			ctx,
			"rejected channel message",
			"content", encoded,
			tint.Err(err),
		)
		d.sendLogEmbed(ctx, "Invalid base64 encoded string", "", "")
		return
	}
	d.bot.queue.Push(
		ctx,
		&CohostRequest{EncodedName: encoded, Origin: RequestOriginChannel},
	)
	d.sendLogEmbed(
		ctx,
		fmt.Sprintf("Queued co-host trigger for encoded name: %s", encoded),
		"", "",
	)
}

// reportTriggerResult announces a queue worker outcome in the log
// channel.
func (d *Discord) reportTriggerResult(
	ctx context.Context,
	req *CohostRequest,
	zoomName string,
	ok bool,
) {
	displayName := zoomName
	if displayName == "" {
		displayName = req.EncodedName
	}
	if ok {
		d.sendLogEmbed(
			ctx,
			fmt.Sprintf("Co-host has been assigned to %s.", displayName),
			"", "",
		)
		return
	}
	d.sendLogEmbed(
		ctx,
		fmt.Sprintf("Failed to send co-host trigger for %s.", displayName),
		"", "",
	)
}

// sendLogEmbed sends an orange embed to the log channel. Failures are
// logged and swallowed - the log channel is best-effort.
func (d *Discord) sendLogEmbed(
	ctx context.Context,
	description string,
	title string,
	footer string,
) {
	if d.config.LogChannelID == "" || d.session == nil {
		return
	}
	if footer == "" {
		footer = d.bot.RuntimeConfig().EmbedFooter
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       logEmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
	}
	if _, err := d.session.ChannelMessageSendEmbed(
		d.config.LogChannelID,
		embed,
	); err != nil {
		d.logger.ErrorContext(ctx, "error sending log embed", tint.Err(err))
	}
}

// hostCommandEmbed renders the control message embed from the current
// runtime configuration.
func (d *Discord) hostCommandEmbed(cfg RuntimeConfig) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       cfg.EmbedTitle,
		Description: cfg.EmbedBody,
		Color:       cfg.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: cfg.EmbedFooter},
	}
	if cfg.EmbedThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cfg.EmbedThumbnailURL}
	}
	return embed
}

// hostCommandComponents returns the button rows attached to the control
// message.
func (d *Discord) hostCommandComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Self Assign Co-Host",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDSelfAssignCohost,
				},
				discordgo.Button{
					Label:    "Update Zoom Name",
					Style:    discordgo.PrimaryButton,
					CustomID: customIDUpdateZoomName,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Operations",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpenOps,
				},
				discordgo.Button{
					Label:    "Unmute",
					Emoji:    &discordgo.ComponentEmoji{Name: "🎙️"},
					Style:    discordgo.SecondaryButton,
					CustomID: customIDUnmute,
				},
			},
		},
	}
}

func opsToolsComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Assign Co-Host",
					Emoji:    &discordgo.ComponentEmoji{Name: "🤝"},
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsAssignCohost,
				},
				discordgo.Button{
					Label:    "Assign Host",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsAssignHost,
				},
				discordgo.Button{
					Label:    "Revoke Co-Host",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsRevokeCohost,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Reclaim Host",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsReclaimHost,
				},
				discordgo.Button{
					Label:    "Next Track",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsNextTrack,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Room Started",
					Style:    discordgo.SuccessButton,
					CustomID: customIDOpsRoomStarted,
				},
				discordgo.Button{
					Label:    "Room Closed",
					Style:    discordgo.DangerButton,
					CustomID: customIDOpsRoomClosed,
				},
				discordgo.Button{
					Label:    "Room Shutdown",
					Style:    discordgo.DangerButton,
					CustomID: customIDOpsRoomShutdown,
				},
				discordgo.Button{
					Label:    "Update New Room Info",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsUpdateRoom,
				},
				discordgo.Button{
					Label:    "Maintenance",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsMaintenance,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Enable Host Command",
					Emoji:    &discordgo.ComponentEmoji{Name: "🟢"},
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsEnableHost,
				},
				discordgo.Button{
					Label:    "Disable Host Command",
					Emoji:    &discordgo.ComponentEmoji{Name: "🔴"},
					Style:    discordgo.SecondaryButton,
					CustomID: customIDOpsDisableHost,
				},
			},
		},
	}
}

func maintenanceComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Update Embed Title",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintTitle,
				},
				discordgo.Button{
					Label:    "Update Embed Body",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintBody,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Thumbnail URL",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintThumbnail,
				},
				discordgo.Button{
					Label:    "Update Default Footer",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintFooter,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Update Embed Color",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintColor,
				},
				discordgo.Button{
					Label:    "Refresh Embed",
					Style:    discordgo.SuccessButton,
					CustomID: customIDMaintRefresh,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Set Embed Refresh Rate",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintRefreshRate,
				},
				discordgo.Button{
					Label:    "Set Queue Delay",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintQueueDelay,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "View Storage Status",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDMaintBackend,
				},
				discordgo.Button{
					Label:    "Back",
					Style:    discordgo.DangerButton,
					CustomID: customIDMaintBack,
				},
			},
		},
	}
}

func unmuteConfirmComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Yes",
					Style:    discordgo.SuccessButton,
					CustomID: customIDUnmuteConfirm,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: customIDUnmuteCancel,
				},
			},
		},
	}
}

// postHostCommand deletes the previous control message and posts a fresh
// one, persisting the new message ID. If the stored ID no longer
// resolves, recent channel history is scanned for a bot message with an
// embed.
func (d *Discord) postHostCommand(ctx context.Context) error {
	d.postMu.Lock()
	defer d.postMu.Unlock()

	channelID := d.config.ChannelID
	if channelID == "" {
		return fmt.Errorf("host channel not configured")
	}

	var previous *discordgo.Message
	if messageID := d.bot.state.ControlMessageID(ctx); messageID != "" {
		msg, err := d.session.ChannelMessage(channelID, messageID)
		if err != nil {
			d.logger.InfoContext(
				ctx,
				"stored control message not found",
				"message_id", messageID,
				tint.Err(err),
			)
		} else {
			previous = msg
		}
	}
	if previous == nil {
		history, err := d.session.ChannelMessages(
			channelID, historyScanLimit, "", "", "",
		)
		if err != nil {
			d.logger.ErrorContext(
				ctx,
				"error scanning channel history",
				tint.Err(err),
			)
		}
		for _, m := range history {
			if m.Author != nil && m.Author.ID == d.botUserID && len(m.Embeds) > 0 {
				previous = m
				break
			}
		}
	}
	if previous != nil {
		if err := d.session.ChannelMessageDelete(channelID, previous.ID); err != nil {
			d.logger.ErrorContext(
				ctx,
				"error deleting previous control message",
				"message_id", previous.ID,
				tint.Err(err),
			)
		}
	}

	cfg := d.bot.RuntimeConfig()
	message, err := d.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{d.hostCommandEmbed(cfg)},
			Components: d.hostCommandComponents(),
		},
	)
	if err != nil {
		return fmt.Errorf("error posting control message: %w", err)
	}
	if saveErr := d.bot.state.SetControlMessageID(ctx, message.ID); saveErr != nil {
		d.logger.ErrorContext(
			ctx,
			"error persisting control message id",
			tint.Err(saveErr),
		)
	}
	d.logger.InfoContext(ctx, "posted control message", "message_id", message.ID)
	return nil
}

// purgeChannel deletes recent messages in the given channel, one page at
// a time.
func (d *Discord) purgeChannel(ctx context.Context, channelID string) {
	for {
		messages, err := d.session.ChannelMessages(
			channelID, purgeBatchLimit, "", "", "",
		)
		if err != nil {
			d.logger.ErrorContext(ctx, "error listing messages", tint.Err(err))
			return
		}
		if len(messages) == 0 {
			return
		}
		for _, m := range messages {
			if delErr := d.session.ChannelMessageDelete(channelID, m.ID); delErr != nil {
				d.logger.ErrorContext(
					ctx,
					"error deleting message",
					"message_id", m.ID,
					tint.Err(delErr),
				)
			}
		}
		if len(messages) < purgeBatchLimit {
			return
		}
	}
}

// registerCommands sends the bot's slash commands to the discord bulk
// overwrite endpoint.
func (d *Discord) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	adminPerm := int64(discordgo.PermissionManageChannels)
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        DiscordSlashCommandEmbedHostCommand,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Repost the host command embed",
		},
		{
			Name:        DiscordSlashCommandEmbedHostbot,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Repost and pin the host command embed",
		},
		{
			Name:                     DiscordSlashCommandUpdateRoomInfo,
			Type:                     discordgo.ChatApplicationCommand,
			Description:              "Update a channel's room info",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to update",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "info",
					Description: "Room information text",
					Required:    true,
				},
			},
		},
		{
			Name:        DiscordSlashCommandOpsAssignZoom,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Assign a user's Zoom name",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to update",
					Required:    true,
				},
			},
		},
	}

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.applicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("Created command", "command", c.Name)
	}
	return created, nil
}

// hasOpsAccess reports whether the interaction's member may use the
// operations panel: guild administrators, the configured ops role, or a
// statically configured admin user ID.
func (d *Discord) hasOpsAccess(i *discordgo.InteractionCreate) bool {
	if i.Member == nil || i.Member.User == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if d.config.OpsRoleID != "" {
		for _, roleID := range i.Member.Roles {
			if roleID == d.config.OpsRoleID {
				return true
			}
		}
	}
	for _, adminID := range d.config.OpsAdminUserIDs {
		if adminID == i.Member.User.ID {
			return true
		}
	}
	return false
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func interactionDisplayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}

// handleInteraction dispatches an interaction to the appropriate
// component, modal or slash command handler.
func (d *Discord) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	defer func() {
		if rc := recover(); rc != nil {
			d.logger.ErrorContext(ctx, "recovered handling interaction", "panic", rc)
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		d.handleSlashCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		d.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		d.handleModalSubmit(ctx, i)
	default:
		d.logger.WarnContext(ctx, "unhandled interaction type", "type", i.Type)
	}
}

func (d *Discord) respondEphemeral(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error responding to interaction", tint.Err(err))
	}
}

func (d *Discord) respondEphemeralView(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
	components []discordgo.MessageComponent,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: components,
				Flags:      discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error responding to interaction", tint.Err(err))
	}
}

// respondTemporaryEmbed sends an ephemeral embed response and deletes it
// shortly after.
func (d *Discord) respondTemporaryEmbed(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error responding to interaction", tint.Err(err))
		return
	}
	go func() {
		time.Sleep(temporaryEmbedDelay)
		if delErr := d.session.InteractionResponseDelete(i.Interaction); delErr != nil {
			d.logger.DebugContext(
				ctx,
				"failed to delete temporary embed",
				tint.Err(delErr),
			)
		}
	}()
}

func (d *Discord) sendModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	customID string,
	title string,
	input discordgo.TextInput,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: customID,
				Title:    title,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{input},
					},
				},
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error sending modal", tint.Err(err))
	}
}

func textInput(customID, label, placeholder string, paragraph bool) discordgo.TextInput {
	style := discordgo.TextInputShort
	if paragraph {
		style = discordgo.TextInputParagraph
	}
	return discordgo.TextInput{
		CustomID:    customID,
		Label:       label,
		Placeholder: placeholder,
		Style:       style,
		Required:    true,
	}
}

func (d *Discord) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	logger := d.logger.With(
		"custom_id", customID,
		"user_id", interactionUserID(i),
	)
	logger.InfoContext(ctx, "component interaction")

	if spec, ok := syncTriggerSpecs[customID]; ok && !spec.needsName {
		d.runSyncTrigger(ctx, i, spec, "")
		return
	}

	switch customID {
	case customIDSelfAssignCohost:
		d.handleSelfAssignCohost(ctx, i)
	case customIDUpdateZoomName:
		d.sendModal(
			ctx, i, modalIDZoomName, "Update Zoom Name",
			textInput(modalInputZoomName, "Enter Zoom Name", "Your Zoom display name", false),
		)
	case customIDOpenOps:
		if !d.hasOpsAccess(i) {
			d.respondEphemeral(ctx, i, "You do not have permission to access admin tools.")
			return
		}
		d.respondEphemeralView(ctx, i, "Admin tools:", opsToolsComponents())
	case customIDUnmute:
		d.respondEphemeralView(ctx, i, "Confirm unmute?", unmuteConfirmComponents())
	case customIDUnmuteConfirm:
		d.handleUnmuteConfirm(ctx, i)
	case customIDUnmuteCancel:
		d.editComponentMessage(ctx, i, "Unmute cancelled.")
	case customIDOpsAssignCohost:
		d.sendModal(
			ctx, i, modalIDAssignCohost, "Assign Co-Host",
			textInput(modalInputZoomName, "Zoom Name", "Zoom display name", false),
		)
	case customIDOpsAssignHost:
		d.sendModal(
			ctx, i, modalIDAssignHost, "Assign Host",
			textInput(modalInputZoomName, "Zoom Name", "Zoom display name", false),
		)
	case customIDOpsRevokeCohost:
		d.sendModal(
			ctx, i, modalIDRevokeCohost, "Revoke Co-Host",
			textInput(modalInputZoomName, "Zoom Name to Revoke", "Zoom display name", false),
		)
	case customIDOpsRoomStarted:
		d.announceRoom(ctx, i, roomStartedPrefix, "Room started announced.")
	case customIDOpsRoomClosed:
		d.announceRoom(ctx, i, roomClosedPrefix, "Room closed announced.")
	case customIDOpsRoomShutdown:
		if _, err := d.session.ChannelMessageSend(
			i.ChannelID, roomShutdownNotice,
		); err != nil {
			d.logger.ErrorContext(ctx, "error announcing shutdown", tint.Err(err))
		}
		d.respondEphemeral(ctx, i, "Room shutdown announced.")
	case customIDOpsUpdateRoom:
		d.sendModal(
			ctx, i, modalIDRoomNumber, "Update New Room Info",
			textInput(modalInputValue, "Room Number", "11-digit room number", false),
		)
	case customIDOpsEnableHost:
		d.setHostCommandEnabled(ctx, i, true)
	case customIDOpsDisableHost:
		d.setHostCommandEnabled(ctx, i, false)
	case customIDOpsMaintenance:
		d.respondEphemeralView(ctx, i, "Maintenance tools:", maintenanceComponents())
	case customIDMaintTitle:
		d.sendModal(
			ctx, i, modalIDEmbedTitle, "Update Embed Title",
			textInput(modalInputValue, "New Title", "", false),
		)
	case customIDMaintBody:
		d.sendModal(
			ctx, i, modalIDEmbedBody, "Update Embed Body",
			textInput(modalInputValue, "New Body", "", true),
		)
	case customIDMaintThumbnail:
		d.sendModal(
			ctx, i, modalIDThumbnail, "Update Thumbnail URL",
			textInput(modalInputValue, "Thumbnail URL", "", false),
		)
	case customIDMaintFooter:
		d.sendModal(
			ctx, i, modalIDFooter, "Update Footer Text",
			textInput(modalInputValue, "Footer", "", false),
		)
	case customIDMaintColor:
		d.sendModal(
			ctx, i, modalIDColor, "Update Embed Color",
			textInput(modalInputValue, "Color hex (e.g. #FF0000)", "", false),
		)
	case customIDMaintRefresh:
		d.bot.RequestRefresh()
		d.respondEphemeral(ctx, i, "Embed refreshed.")
	case customIDMaintRefreshRate:
		d.sendModal(
			ctx, i, modalIDRefreshRate, "Set Embed Refresh Rate",
			textInput(modalInputValue, "Seconds", "", false),
		)
	case customIDMaintQueueDelay:
		d.sendModal(
			ctx, i, modalIDQueueDelay, "Set Queue Delay",
			textInput(modalInputValue, "Seconds", "", false),
		)
	case customIDMaintBackend:
		backend := d.bot.store.BackendName(ctx)
		if backend == storageBackendFirebase {
			d.respondEphemeral(ctx, i, "Firebase connected")
		} else {
			d.respondEphemeral(ctx, i, "Firebase not configured")
		}
	case customIDMaintBack:
		d.updateComponentView(ctx, i, "Admin tools:", opsToolsComponents())
	default:
		logger.WarnContext(ctx, "unknown component custom id")
	}
}

// handleSelfAssignCohost queues a co-host request using the caller's
// stored Zoom name.
func (d *Discord) handleSelfAssignCohost(ctx context.Context, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	encoded, found := d.bot.store.ZoomName(ctx, userID)
	if !found || encoded == "" {
		d.respondEphemeral(
			ctx, i,
			"Please update your Zoom name first using 📋 Update Zoom Name",
		)
		return
	}
	position := d.bot.queue.Push(
		ctx,
		&CohostRequest{EncodedName: encoded, Origin: RequestOriginSelf},
	)
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf(
			"Your co-host request has been queued. You are #%d in line.",
			position,
		),
	)
}

// runSyncTrigger fires a trigger immediately (bypassing the queue) and
// reports the collapsed result to the interaction.
func (d *Discord) runSyncTrigger(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	spec triggerActionSpec,
	zoomName string,
) {
	var params string
	if spec.needsName {
		params = EncodeName(zoomName)
	}
	ok := d.bot.trigger.Invoke(ctx, spec.action, params)

	event := &TriggerEvent{
		Action:      string(spec.action),
		EncodedName: params,
		ZoomName:    zoomName,
		Origin:      string(RequestOriginAdmin),
		Success:     ok,
	}
	_ = d.bot.writeDB.RecordEvent(ctx, event)

	if ok {
		msg := spec.successMsg
		if spec.needsName {
			msg = fmt.Sprintf(spec.successMsg, zoomName)
		}
		d.respondEphemeral(ctx, i, msg)
		return
	}
	d.respondEphemeral(ctx, i, spec.failureMsg)
}

// handleUnmuteConfirm fires the unmute trigger and edits the
// confirmation message through a visible countdown.
func (d *Discord) handleUnmuteConfirm(ctx context.Context, i *discordgo.InteractionCreate) {
	content := fmt.Sprintf(
		"Server will be unmuted in %d seconds...",
		unmuteCountdownSeconds,
	)
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: []discordgo.MessageComponent{},
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error updating unmute message", tint.Err(err))
		return
	}

	ok := d.bot.trigger.Invoke(ctx, TriggerActionUnmute, "")
	_ = d.bot.writeDB.RecordEvent(
		ctx,
		&TriggerEvent{
			Action:  string(TriggerActionUnmute),
			Origin:  string(RequestOriginAdmin),
			Success: ok,
		},
	)

	for remaining := unmuteCountdownSeconds - 1; remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		countdown := fmt.Sprintf("Server will be unmuted in %d seconds...", remaining)
		if _, editErr := d.session.InteractionResponseEdit(
			i.Interaction,
			&discordgo.WebhookEdit{Content: &countdown},
		); editErr != nil {
			d.logger.DebugContext(ctx, "countdown edit failed", tint.Err(editErr))
			return
		}
	}
	final := "Unmute command sent."
	if !ok {
		final = "Failed to send unmute command."
	}
	if _, editErr := d.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &final},
	); editErr != nil {
		d.logger.DebugContext(ctx, "final edit failed", tint.Err(editErr))
	}
}

// editComponentMessage replaces the component message's content and
// strips its buttons.
func (d *Discord) editComponentMessage(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: []discordgo.MessageComponent{},
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error editing component message", tint.Err(err))
	}
}

// updateComponentView swaps the component message's content and buttons.
func (d *Discord) updateComponentView(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
	components []discordgo.MessageComponent,
) {
	err := d.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: components,
			},
		},
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "error updating component view", tint.Err(err))
	}
}

// announceRoom posts the room number with a status prefix to the
// interaction's channel.
func (d *Discord) announceRoom(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	prefix string,
	confirmation string,
) {
	roomNumber := d.bot.state.RoomNumber(ctx)
	if roomNumber == "" {
		d.respondEphemeral(ctx, i, "Room number not set.")
		return
	}
	if _, err := d.session.ChannelMessageSend(
		i.ChannelID,
		prefix+roomNumber,
	); err != nil {
		d.logger.ErrorContext(ctx, "error announcing room", tint.Err(err))
		d.respondEphemeral(ctx, i, "Failed to announce room.")
		return
	}
	d.respondEphemeral(ctx, i, confirmation)
}

// setHostCommandEnabled toggles co-host role visibility of the host
// channel and renames the channel to reflect the state.
func (d *Discord) setHostCommandEnabled(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	enabled bool,
) {
	channelID := d.config.ChannelID
	if channelID == "" {
		d.respondEphemeral(ctx, i, "Channel not found")
		return
	}
	if d.config.CohostRoleID == "" {
		d.respondEphemeral(ctx, i, "Roles not configured")
		return
	}

	var allow, deny int64
	if enabled {
		allow = discordgo.PermissionViewChannel
	} else {
		deny = discordgo.PermissionViewChannel
	}
	if err := d.session.ChannelPermissionSet(
		channelID,
		d.config.CohostRoleID,
		discordgo.PermissionOverwriteTypeRole,
		allow,
		deny,
	); err != nil {
		d.logger.ErrorContext(ctx, "error setting channel permissions", tint.Err(err))
		d.respondEphemeral(ctx, i, "Failed to update channel permissions.")
		return
	}

	name := hostChannelDisabledName
	if enabled {
		name = hostChannelEnabledName
	}
	if _, err := d.session.ChannelEdit(
		channelID,
		&discordgo.ChannelEdit{Name: name},
	); err != nil {
		d.logger.ErrorContext(ctx, "error renaming channel", tint.Err(err))
	}

	if enabled {
		d.respondEphemeral(ctx, i, "Host command enabled")
		return
	}
	d.respondTemporaryEmbed(
		ctx, i,
		&discordgo.MessageEmbed{
			Description: "Host command disabled",
			Color:       0xE74C3C,
			Footer: &discordgo.MessageEmbedFooter{
				Text: d.bot.RuntimeConfig().EmbedFooter,
			},
		},
	)
}

// modalInputValueByID extracts the submitted value of a text input from
// modal data.
func modalInputValueByID(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			input, ok := component.(*discordgo.TextInput)
			if !ok {
				continue
			}
			if input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}

func (d *Discord) handleModalSubmit(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	customID := data.CustomID
	logger := d.logger.With(
		"custom_id", customID,
		"user_id", interactionUserID(i),
	)
	logger.InfoContext(ctx, "modal submitted")

	// ops zoom-name modals carry the target member ID as a suffix
	if strings.HasPrefix(customID, modalIDOpsZoomName+":") {
		memberID := strings.TrimPrefix(customID, modalIDOpsZoomName+":")
		d.handleOpsZoomNameSubmit(ctx, i, data, memberID)
		return
	}

	if spec, ok := syncTriggerSpecs[customID]; ok && spec.needsName {
		zoomName := strings.TrimSpace(modalInputValueByID(data, modalInputZoomName))
		if zoomName == "" {
			d.respondEphemeral(ctx, i, "Zoom name is required.")
			return
		}
		d.runSyncTrigger(ctx, i, spec, zoomName)
		return
	}

	switch customID {
	case modalIDZoomName:
		d.handleZoomNameSubmit(ctx, i, data)
	case modalIDAssignCohost:
		d.handleAssignCohostSubmit(ctx, i, data)
	case modalIDRoomNumber:
		d.handleRoomNumberSubmit(ctx, i, data)
	case modalIDEmbedTitle:
		value := modalInputValueByID(data, modalInputValue)
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.EmbedTitle = value })
		d.respondEphemeral(ctx, i, "Embed title updated.")
		d.bot.RequestRefresh()
	case modalIDEmbedBody:
		value := modalInputValueByID(data, modalInputValue)
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.EmbedBody = value })
		d.respondEphemeral(ctx, i, "Embed body updated.")
		d.bot.RequestRefresh()
	case modalIDThumbnail:
		value := modalInputValueByID(data, modalInputValue)
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.EmbedThumbnailURL = value })
		d.respondEphemeral(ctx, i, "Thumbnail updated.")
		d.bot.RequestRefresh()
	case modalIDFooter:
		value := modalInputValueByID(data, modalInputValue)
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.EmbedFooter = value })
		d.respondEphemeral(ctx, i, "Footer updated.")
		d.bot.RequestRefresh()
	case modalIDColor:
		color, err := ParseEmbedColor(modalInputValueByID(data, modalInputValue))
		if err != nil {
			d.respondEphemeral(ctx, i, "Invalid color value.")
			return
		}
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.EmbedColor = color })
		d.respondEphemeral(ctx, i, "Color updated.")
		d.bot.RequestRefresh()
	case modalIDRefreshRate:
		interval, err := ParseSeconds(modalInputValueByID(data, modalInputValue))
		if err != nil {
			d.respondEphemeral(ctx, i, "Invalid number.")
			return
		}
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.RefreshInterval = interval })
		d.respondEphemeral(ctx, i, "Refresh rate updated.")
	case modalIDQueueDelay:
		delay, err := ParseSeconds(modalInputValueByID(data, modalInputValue))
		if err != nil {
			d.respondEphemeral(ctx, i, "Invalid number.")
			return
		}
		d.bot.UpdateRuntimeConfig(func(cfg *RuntimeConfig) { cfg.QueueDelay = delay })
		d.respondEphemeral(ctx, i, "Queue delay updated.")
	default:
		logger.WarnContext(ctx, "unknown modal custom id")
	}
}

func (d *Discord) handleZoomNameSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
) {
	zoomName := strings.TrimSpace(modalInputValueByID(data, modalInputZoomName))
	if zoomName == "" {
		d.respondEphemeral(ctx, i, "Zoom name is required.")
		return
	}
	userID := interactionUserID(i)

	var prevName string
	if previous, found := d.bot.store.ZoomName(ctx, userID); found {
		if decoded, err := DecodeName(previous); err == nil {
			prevName = decoded
		}
	}

	encoded, err := d.bot.store.SaveZoomName(ctx, userID, zoomName)
	if err != nil {
		d.respondEphemeral(ctx, i, fmt.Sprintf("Error updating Zoom name: %v", err))
		return
	}
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf("Zoom name updated and encoded: %s", encoded),
	)
	d.sendLogEmbed(
		ctx,
		fmt.Sprintf(
			"Zoom name has been updated for %s to %s",
			prevName, zoomName,
		),
		"NAME CHANGE",
		interactionDisplayName(i),
	)
}

func (d *Discord) handleOpsZoomNameSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
	memberID string,
) {
	zoomName := strings.TrimSpace(modalInputValueByID(data, modalInputZoomName))
	if zoomName == "" {
		d.respondEphemeral(ctx, i, "Zoom name is required.")
		return
	}

	var prevName string
	if previous, found := d.bot.store.ZoomName(ctx, memberID); found {
		if decoded, err := DecodeName(previous); err == nil {
			prevName = decoded
		}
	}

	if _, err := d.bot.store.SaveZoomName(ctx, memberID, zoomName); err != nil {
		d.respondEphemeral(ctx, i, fmt.Sprintf("Error updating Zoom name: %v", err))
		return
	}
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf("Zoom name for <@%s> updated", memberID),
	)
	d.sendLogEmbed(
		ctx,
		fmt.Sprintf(
			"%s set zoom name for <@%s> from %s to %s.",
			interactionDisplayName(i), memberID, prevName, zoomName,
		),
		"", "",
	)
}

func (d *Discord) handleAssignCohostSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
) {
	zoomName := strings.TrimSpace(modalInputValueByID(data, modalInputZoomName))
	if zoomName == "" {
		d.respondEphemeral(ctx, i, "Zoom name is required.")
		return
	}
	position := d.bot.queue.Push(
		ctx,
		&CohostRequest{
			EncodedName: EncodeName(zoomName),
			Origin:      RequestOriginAdmin,
		},
	)
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf(
			"Co-host assignment for %s has been queued. You are #%d in line.",
			zoomName, position,
		),
	)
}

func (d *Discord) handleRoomNumberSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
) {
	value := modalInputValueByID(data, modalInputValue)
	if err := d.bot.state.SetRoomNumber(ctx, value); err != nil {
		d.respondEphemeral(ctx, i, "Invalid room number. Must be 11 digits.")
		return
	}
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf(
			"Room number updated to %s.",
			d.bot.state.RoomNumber(ctx),
		),
	)
}

func (d *Discord) handleSlashCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	logger := d.logger.With(
		"command", data.Name,
		"user_id", interactionUserID(i),
	)
	logger.InfoContext(ctx, "slash command")

	switch data.Name {
	case DiscordSlashCommandEmbedHostCommand:
		d.purgeChannel(ctx, i.ChannelID)
		if err := d.postHostCommand(ctx); err != nil {
			logger.ErrorContext(ctx, "error reposting control message", tint.Err(err))
		}
		d.respondEphemeral(ctx, i, "Host command reposted.")
	case DiscordSlashCommandEmbedHostbot:
		d.purgeChannel(ctx, i.ChannelID)
		if err := d.postHostCommand(ctx); err != nil {
			logger.ErrorContext(ctx, "error reposting control message", tint.Err(err))
			d.respondEphemeral(ctx, i, "Failed to repost the embed.")
			return
		}
		d.pinControlMessage(ctx)
		d.respondEphemeral(ctx, i, "VenueBot embed posted and pinned.")
	case DiscordSlashCommandUpdateRoomInfo:
		d.handleUpdateRoomInfo(ctx, i, data)
	case DiscordSlashCommandOpsAssignZoom:
		d.handleOpsAssignZoomCommand(ctx, i, data)
	default:
		logger.WarnContext(ctx, "unknown slash command")
	}
}

// pinControlMessage pins the stored control message and removes the
// resulting pin service message.
func (d *Discord) pinControlMessage(ctx context.Context) {
	messageID := d.bot.state.ControlMessageID(ctx)
	if messageID == "" {
		return
	}
	if err := d.session.ChannelMessagePin(d.config.ChannelID, messageID); err != nil {
		d.logger.ErrorContext(ctx, "error pinning control message", tint.Err(err))
		return
	}
	history, err := d.session.ChannelMessages(d.config.ChannelID, 1, "", "", "")
	if err != nil || len(history) == 0 {
		return
	}
	if history[0].Type == discordgo.MessageTypeChannelPinnedMessage {
		if delErr := d.session.ChannelMessageDelete(
			d.config.ChannelID, history[0].ID,
		); delErr != nil {
			d.logger.DebugContext(
				ctx,
				"failed to delete pin notice",
				tint.Err(delErr),
			)
		}
	}
}

func (d *Discord) handleUpdateRoomInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ApplicationCommandInteractionData,
) {
	if i.Member == nil ||
		i.Member.Permissions&discordgo.PermissionManageChannels == 0 {
		d.respondEphemeral(ctx, i, "You do not have permission to use this command.")
		return
	}

	var channelID, info string
	for _, opt := range data.Options {
		switch opt.Name {
		case "channel":
			channelID = opt.Value.(string)
		case "info":
			info = opt.StringValue()
		}
	}
	if channelID == "" || info == "" {
		d.respondEphemeral(ctx, i, "Channel and info are required.")
		return
	}

	if _, err := d.session.ChannelEdit(
		channelID,
		&discordgo.ChannelEdit{Topic: info},
	); err != nil {
		d.logger.ErrorContext(ctx, "error updating channel topic", tint.Err(err))
		d.respondEphemeral(ctx, i, "Failed to update room info.")
		return
	}
	if _, err := d.session.ChannelMessageSend(
		channelID,
		fmt.Sprintf("Room info updated:\n%s", info),
	); err != nil {
		d.logger.ErrorContext(ctx, "error announcing room info", tint.Err(err))
	}
	d.respondEphemeral(
		ctx, i,
		fmt.Sprintf("Room info updated for <#%s>.", channelID),
	)
}

func (d *Discord) handleOpsAssignZoomCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ApplicationCommandInteractionData,
) {
	if !d.hasOpsAccess(i) {
		d.respondEphemeral(ctx, i, "You do not have permission to use this command.")
		return
	}
	var memberID string
	for _, opt := range data.Options {
		if opt.Name == "member" {
			memberID = opt.Value.(string)
		}
	}
	if memberID == "" {
		d.respondEphemeral(ctx, i, "Member is required.")
		return
	}
	d.sendModal(
		ctx, i,
		fmt.Sprintf("%s:%s", modalIDOpsZoomName, memberID),
		"Assign Zoom Name",
		textInput(modalInputZoomName, "Zoom Name", "Zoom display name", false),
	)
}

// DiscordSessionHandler defines the subset of discordgo.Session methods
// the bot uses, to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessage(
		channelID string,
		messageID string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessages(
		channelID string,
		limit int,
		beforeID string,
		afterID string,
		aroundID string,
		opts ...discordgo.RequestOption,
	) ([]*discordgo.Message, error)

	ChannelMessageDelete(
		channelID string,
		messageID string,
		opts ...discordgo.RequestOption,
	) error

	ChannelMessagePin(
		channelID string,
		messageID string,
		opts ...discordgo.RequestOption,
	) error

	ChannelEdit(
		channelID string,
		data *discordgo.ChannelEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	ChannelPermissionSet(
		channelID string,
		targetID string,
		targetType discordgo.PermissionOverwriteType,
		allow int64,
		deny int64,
		opts ...discordgo.RequestOption,
	) error

	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponseEdit modifies the given interaction
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// InteractionResponseDelete deletes the given interaction
	InteractionResponseDelete(
		interaction *discordgo.Interaction,
		options ...discordgo.RequestOption,
	) error

	// SetHTTPClient sets the HTTP client for the session
	SetHTTPClient(client *http.Client)

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session].
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, message, opts...)
}

func (d DiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendEmbed(channelID, embed, opts...)
}

func (d DiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, data, opts...)
}

func (d DiscordSession) ChannelMessage(
	channelID string,
	messageID string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessage(channelID, messageID, opts...)
}

func (d DiscordSession) ChannelMessages(
	channelID string,
	limit int,
	beforeID string,
	afterID string,
	aroundID string,
	opts ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(
		channelID, limit, beforeID, afterID, aroundID, opts...,
	)
}

func (d DiscordSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	opts ...discordgo.RequestOption,
) error {
	return d.session.ChannelMessageDelete(channelID, messageID, opts...)
}

func (d DiscordSession) ChannelMessagePin(
	channelID string,
	messageID string,
	opts ...discordgo.RequestOption,
) error {
	return d.session.ChannelMessagePin(channelID, messageID, opts...)
}

func (d DiscordSession) ChannelEdit(
	channelID string,
	data *discordgo.ChannelEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.ChannelEdit(channelID, data, opts...)
}

func (d DiscordSession) ChannelPermissionSet(
	channelID string,
	targetID string,
	targetType discordgo.PermissionOverwriteType,
	allow int64,
	deny int64,
	opts ...discordgo.RequestOption,
) error {
	return d.session.ChannelPermissionSet(
		channelID, targetID, targetType, allow, deny, opts...,
	)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID, guildID, commands, options...,
	)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (d DiscordSession) InteractionResponseDelete(
	interaction *discordgo.Interaction,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionResponseDelete(interaction, options...)
}

func (d DiscordSession) SetHTTPClient(client *http.Client) {
	d.session.Client = client
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl {
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("unknown log level: %v", lvl)
	}
	return nil
}
