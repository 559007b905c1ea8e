package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"community-chat/community"
	"community-chat/models"
	"community-chat/store"
)

const (
	pageLogin    = "login"
	pageMain     = "main"
	pageMembers  = "members"
	pageNewGroup = "newgroup"

	requestTimeout = 15 * time.Second
)

// App is the terminal front-end. It drives the same client and state as the
// local UI server: every key action is one remote call followed by a local
// state update and a redraw.
type App struct {
	ui     *tview.Application
	pages  *tview.Pages
	log    *logrus.Logger
	client *community.Client
	state  *store.Store

	activeMu sync.RWMutex
	activeID int64

	tree        *tview.TreeView
	thread      *tview.List
	compose     *tview.InputField
	status      *tview.TextView
	loginStatus *tview.TextView
	memberList  *tview.List
}

func New(client *community.Client, state *store.Store, log *logrus.Logger) *App {
	return &App{
		client: client,
		state:  state,
		log:    log,
	}
}

// Run builds the pages and blocks until the user quits.
func (a *App) Run() error {
	a.ui = tview.NewApplication()
	a.pages = tview.NewPages()

	a.pages.AddPage(pageLogin, a.createLoginPage(), true, true)
	a.pages.AddPage(pageMain, a.createMainView(), true, false)

	frame := tview.NewFrame(a.pages)
	frame.SetBorder(true)
	frame.SetTitle("community-chat")
	frame.SetTitleAlign(tview.AlignCenter)

	a.ui.SetRoot(frame, true)
	a.ui.SetFocus(a.pages)

	go a.start()
	return a.ui.Run()
}

func (a *App) createLoginPage() tview.Primitive {
	p := tview.NewTextView()
	p.SetTitle("Log-in")
	p.SetText("Verifying session...")
	p.SetTextAlign(tview.AlignCenter)
	p.SetBorder(true)
	p.SetBorderPadding(1, 1, 1, 1)
	a.loginStatus = p

	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, 10, 1, false).
			AddItem(nil, 0, 1, false), 48, 1, false).
		AddItem(nil, 0, 1, false)
}

func (a *App) createMainView() tview.Primitive {
	a.tree = tview.NewTreeView()
	a.tree.SetBorder(true)
	a.tree.SetTitle("Conversations")

	a.thread = tview.NewList()
	a.thread.SetBorder(true)
	a.thread.SetTitle("Thread")

	a.compose = tview.NewInputField().
		SetLabel("Message: ").
		SetPlaceholder("i to compose, f favorite, g new group, m members, r reload, Enter to send")
	a.compose.SetFieldWidth(0)
	a.compose.SetBorder(true)
	a.compose.SetTitle("Compose")

	a.status = tview.NewTextView()
	a.status.SetTextAlign(tview.AlignLeft)

	a.tree.SetSelectedFunc(func(node *tview.TreeNode) {
		switch ref := node.GetReference().(type) {
		case int64:
			a.setActive(ref)
			go a.openThread(ref)
		case models.User:
			go a.openDirect(ref)
		default:
			node.SetExpanded(!node.IsExpanded())
		}
	})
	a.tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'f', 'F':
			a.toggleFavoriteForCurrentNode()
			return nil
		case 'i', 'I':
			if a.active() != 0 {
				a.ui.SetFocus(a.compose)
			}
			return nil
		case 'g', 'G':
			a.showNewGroupDialog()
			return nil
		case 'm', 'M':
			if id := a.active(); id != 0 {
				go a.showMembersPanel(id)
			}
			return nil
		case 'r', 'R':
			go func() {
				if err := a.loadAll(); err == nil {
					a.ui.QueueUpdateDraw(a.fillTree)
				}
			}()
			return nil
		case 'q', 'Q':
			a.ui.Stop()
			return nil
		}
		return event
	})

	a.compose.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.ui.SetFocus(a.tree)
			return
		}
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(a.compose.GetText())
		if text == "" {
			return
		}
		id := a.active()
		if id == 0 {
			a.status.SetText("select a conversation before sending")
			return
		}
		a.compose.SetText("")
		go a.send(id, text)
	})

	chatPane := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.compose, 3, 0, false)

	body := tview.NewFlex().
		AddItem(a.tree, 0, 1, true).
		AddItem(chatPane, 0, 2, false)

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(a.status, 1, 0, false)
}

// start is the session gate: a rejected credential keeps the user on the
// login page, a valid one loads the list and switches to the main view.
func (a *App) start() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	user, err := a.client.VerifySession(ctx)
	cancel()
	if err != nil {
		a.log.WithError(err).Error("session verification failed")
		a.ui.QueueUpdateDraw(func() {
			a.loginStatus.SetText("Session invalid.\n\nSet COMMUNITY_API_TOKEN and restart.")
		})
		return
	}

	a.state.SetSession(user)
	a.log.WithField("user", user.Name).Info("session verified")

	if err := a.loadAll(); err != nil {
		a.log.WithError(err).Error("initial load failed")
		a.ui.QueueUpdateDraw(func() {
			a.loginStatus.SetText(fmt.Sprintf("Unable to load conversations:\n%v", err))
		})
		return
	}

	a.ui.QueueUpdateDraw(func() {
		a.fillTree()
		a.pages.SwitchToPage(pageMain)
		a.ui.SetFocus(a.tree)
	})
}

// loadAll refreshes the conversation set and the user directory.
func (a *App) loadAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	payloads, err := a.client.ListConversations(ctx)
	if err != nil {
		a.setStatus("loading conversations failed")
		return err
	}
	list := make([]models.Conversation, 0, len(payloads))
	for _, p := range payloads {
		list = append(list, p.ToConversation())
	}
	a.state.ReplaceConversations(list)

	users, err := a.client.ListDirectory(ctx)
	if err != nil {
		a.setStatus("loading user directory failed")
		return err
	}
	a.state.SetDirectory(users)
	return nil
}

// fillTree rebuilds the conversation tree from local state. Must run on the
// UI goroutine.
func (a *App) fillTree() {
	root := tview.NewTreeNode("Community")

	favoritesNode := tview.NewTreeNode("Favorites")
	favoritesNode.SetColor(tcell.ColorYellow)
	for _, conv := range a.state.Conversations(store.FilterFavorites) {
		favoritesNode.AddChild(a.conversationNode(conv))
	}

	groupsNode := tview.NewTreeNode("Groups")
	groupsNode.SetColor(tcell.ColorBlue)
	for _, conv := range a.state.Conversations(store.FilterGroups) {
		groupsNode.AddChild(a.conversationNode(conv))
	}

	directNode := tview.NewTreeNode("Direct")
	directNode.SetColor(tcell.ColorBlue)
	for _, conv := range a.state.Conversations(store.FilterDirect) {
		directNode.AddChild(a.conversationNode(conv))
	}

	directoryNode := tview.NewTreeNode("Users")
	directoryNode.SetColor(tcell.ColorGreen)
	self := a.state.Session()
	for _, user := range a.state.Directory() {
		if self != nil && user.ID == self.ID {
			continue
		}
		userNode := tview.NewTreeNode(user.Name)
		userNode.SetReference(user)
		directoryNode.AddChild(userNode)
	}
	directoryNode.CollapseAll()

	root.AddChild(favoritesNode)
	root.AddChild(groupsNode)
	root.AddChild(directNode)
	root.AddChild(directoryNode)

	a.tree.SetRoot(root)
	a.tree.SetCurrentNode(root)
}

func (a *App) conversationNode(conv models.Conversation) *tview.TreeNode {
	node := tview.NewTreeNode(conversationLabel(conv))
	node.SetReference(conv.ID)
	node.SetColor(tcell.ColorGreen)
	return node
}

func (a *App) setActive(id int64) {
	a.activeMu.Lock()
	a.activeID = id
	a.activeMu.Unlock()
}

func (a *App) active() int64 {
	a.activeMu.RLock()
	defer a.activeMu.RUnlock()
	return a.activeID
}

// openThread lazily fetches the messages on first open, then renders.
func (a *App) openThread(id int64) {
	if !a.state.MessagesLoaded(id) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		payloads, err := a.client.ListMessages(ctx, id)
		cancel()
		if err != nil {
			a.log.WithError(err).WithField("conversation_id", id).Error("loading messages failed")
			a.setStatus("loading messages failed")
			return
		}
		messages := make([]models.Message, 0, len(payloads))
		for _, p := range payloads {
			messages = append(messages, p.ToMessage())
		}
		a.state.SetMessages(id, messages)
	}
	a.renderThread(id)
}

func (a *App) renderThread(id int64) {
	conv, ok := a.state.Get(id)
	if !ok {
		return
	}
	messages := a.state.Messages(id)

	a.ui.QueueUpdateDraw(func() {
		a.thread.SetTitle(conv.Name)
		a.thread.Clear()
		for _, msg := range messages {
			a.thread.AddItem(msg.Content, threadSecondary(msg), 0, nil)
		}
		if a.thread.GetItemCount() > 0 {
			a.thread.SetCurrentItem(a.thread.GetItemCount() - 1)
		}
	})
}

// send posts the message and appends the acknowledged echo locally.
func (a *App) send(id int64, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	message, err := a.client.SendMessage(ctx, id, content)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("sending message failed")
		a.setStatus("sending message failed")
		return
	}

	if user := a.state.Session(); user != nil {
		message.SenderName = user.Name
	}
	a.state.AppendMessage(id, *message)
	a.log.WithFields(logrus.Fields{
		"conversation_id": id,
		"message_id":      message.ID,
	}).Info("message sent")
	a.renderThread(id)
}

// openDirect reuses an already-loaded DM with the user, or creates one.
func (a *App) openDirect(user models.User) {
	if id, ok := a.state.DirectWith(user.ID); ok {
		a.setActive(id)
		a.openThread(id)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	id, err := a.client.OpenDirectChat(ctx, user.ID)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("user_id", user.ID).Error("opening direct chat failed")
		a.setStatus("opening direct chat failed")
		return
	}

	self := a.state.Session()
	members := []models.User{user}
	if self != nil {
		members = append(members, *self)
	}
	a.state.Upsert(models.Conversation{
		ID:       id,
		Type:     models.TypeDirect,
		Name:     user.Name,
		Members:  members,
		Messages: []models.Message{},
	})

	a.ui.QueueUpdateDraw(a.fillTree)
	a.setActive(id)
	a.openThread(id)
}

func (a *App) toggleFavoriteForCurrentNode() {
	selected := a.tree.GetCurrentNode()
	if selected == nil {
		return
	}
	id, ok := selected.GetReference().(int64)
	if !ok {
		return
	}
	favorite := a.state.ToggleFavorite(id)
	a.log.WithFields(logrus.Fields{
		"conversation_id": id,
		"favorite":        favorite,
	}).Debug("favorite toggled")
	a.fillTree()
}

func (a *App) setStatus(text string) {
	a.ui.QueueUpdateDraw(func() {
		a.status.SetText(text)
	})
}
