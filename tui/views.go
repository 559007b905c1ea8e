package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"community-chat/models"
)

const pageAddMember = "addmember"

// conversationLabel is the tree label for a conversation; favorites get a
// star prefix.
func conversationLabel(conv models.Conversation) string {
	if conv.Favorite {
		return "★ " + conv.Name
	}
	return conv.Name
}

// threadSecondary is the secondary line rendered under a message.
func threadSecondary(msg models.Message) string {
	name := msg.SenderName
	if msg.IsMine {
		name = "You"
	}
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("%s · %s", name, msg.CreatedAt.Format("Jan 2 15:04"))
}

// memberLabel renders a directory entry with its selection mark.
func memberLabel(user models.User, selected bool) string {
	mark := "[ ]"
	if selected {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, user.Name)
}

// modal centers a primitive the way the login page is centered.
func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.ui.SetFocus(a.tree)
}

// showNewGroupDialog opens the group-creation form: a name field plus a
// directory list with toggleable member selection. Zero selected members or
// a blank name never produce a request.
func (a *App) showNewGroupDialog() {
	self := a.state.Session()
	directory := a.state.Directory()

	selected := map[int64]bool{}
	var groupName string

	users := make([]models.User, 0, len(directory))
	for _, user := range directory {
		if self != nil && user.ID == self.ID {
			continue
		}
		users = append(users, user)
	}

	memberList := tview.NewList()
	memberList.ShowSecondaryText(false)
	memberList.SetBorder(true)
	memberList.SetTitle("Members (Enter to toggle)")
	for i, user := range users {
		index := i
		user := user
		memberList.AddItem(memberLabel(user, false), "", 0, func() {
			if selected[user.ID] {
				delete(selected, user.ID)
			} else {
				selected[user.ID] = true
			}
			memberList.SetItemText(index, memberLabel(user, selected[user.ID]), "")
		})
	}

	form := tview.NewForm().
		AddInputField("Group name", "", 30, nil, func(text string) {
			groupName = text
		})
	form.SetBorder(true)
	form.SetTitle("New group")
	form.AddButton("Create", func() {
		if strings.TrimSpace(groupName) == "" {
			a.status.SetText("group name is empty")
			return
		}
		ids := make([]int64, 0, len(selected))
		for id := range selected {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			a.status.SetText("select at least one member")
			return
		}
		a.closeDialog(pageNewGroup)
		go a.createGroup(groupName, ids)
	})
	form.AddButton("Cancel", func() {
		a.closeDialog(pageNewGroup)
	})

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 7, 0, true).
		AddItem(memberList, 0, 1, false)
	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			a.closeDialog(pageNewGroup)
			return nil
		case tcell.KeyTab:
			if memberList.HasFocus() {
				a.ui.SetFocus(form)
			} else {
				a.ui.SetFocus(memberList)
			}
			return nil
		}
		return event
	})

	a.pages.AddPage(pageNewGroup, modal(layout, 64, 24), true, true)
	a.ui.SetFocus(form)
}

func (a *App) createGroup(name string, memberIDs []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	payload, err := a.client.CreateGroup(ctx, name, memberIDs)
	cancel()
	if err != nil {
		a.log.WithError(err).Error("creating group failed")
		a.setStatus("creating group failed")
		return
	}

	a.state.Upsert(payload.ToConversation())
	a.ui.QueueUpdateDraw(a.fillTree)
	a.setStatus(fmt.Sprintf("group %q created", payload.DisplayName()))
}

// showMembersPanel fetches the member list and opens the management dialog.
func (a *App) showMembersPanel(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	members, err := a.client.ListMembers(ctx, id)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("loading members failed")
		a.setStatus("loading members failed")
		return
	}
	a.state.SetMembers(id, members)

	conv, ok := a.state.Get(id)
	if !ok {
		return
	}

	a.ui.QueueUpdateDraw(func() {
		list := tview.NewList()
		list.SetBorder(true)
		list.SetTitle(fmt.Sprintf("Members of %s", conv.Name))
		for _, member := range members {
			list.AddItem(member.Name, member.Email, 0, nil)
		}
		a.memberList = list

		hint := tview.NewTextView()
		hint.SetText("a add · d remove · l leave · x delete group · Esc close")

		list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if event.Key() == tcell.KeyEscape {
				a.closeDialog(pageMembers)
				return nil
			}
			if event.Key() != tcell.KeyRune {
				return event
			}
			switch event.Rune() {
			case 'a':
				a.showAddMemberPicker(id, members)
				return nil
			case 'd':
				index := list.GetCurrentItem()
				if index >= 0 && index < len(members) {
					member := members[index]
					a.closeDialog(pageMembers)
					go a.removeMember(id, member.ID)
				}
				return nil
			case 'l':
				a.closeDialog(pageMembers)
				go a.leaveConversation(id)
				return nil
			case 'x':
				a.closeDialog(pageMembers)
				go a.deleteConversation(id)
				return nil
			}
			return event
		})

		layout := tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(list, 0, 1, true).
			AddItem(hint, 1, 0, false)
		a.pages.AddPage(pageMembers, modal(layout, 64, 24), true, true)
		a.ui.SetFocus(list)
	})
}

// showAddMemberPicker lists directory users not yet in the conversation.
func (a *App) showAddMemberPicker(id int64, current []models.User) {
	inConversation := make(map[int64]bool, len(current))
	for _, member := range current {
		inConversation[member.ID] = true
	}

	picker := tview.NewList()
	picker.ShowSecondaryText(true)
	picker.SetBorder(true)
	picker.SetTitle("Add member")
	for _, user := range a.state.Directory() {
		if inConversation[user.ID] {
			continue
		}
		user := user
		picker.AddItem(user.Name, user.Email, 0, func() {
			a.pages.RemovePage(pageAddMember)
			a.closeDialog(pageMembers)
			go a.addMember(id, user.ID)
		})
	}
	picker.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			a.pages.RemovePage(pageAddMember)
			if a.memberList != nil {
				a.ui.SetFocus(a.memberList)
			}
			return nil
		}
		return event
	})

	a.pages.AddPage(pageAddMember, modal(picker, 56, 20), true, true)
	a.ui.SetFocus(picker)
}

func (a *App) addMember(id, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	err := a.client.AddMembers(ctx, id, []int64{userID})
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("adding member failed")
		a.setStatus("adding member failed")
		return
	}
	a.setStatus("member added")
}

func (a *App) removeMember(id, memberID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	err := a.client.RemoveMember(ctx, id, memberID)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("removing member failed")
		a.setStatus("removing member failed")
		return
	}
	a.state.RemoveMember(id, memberID)
	a.setStatus("member removed")
}

func (a *App) leaveConversation(id int64) {
	self := a.state.Session()
	if self == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	err := a.client.RemoveMember(ctx, id, self.ID)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("leaving conversation failed")
		a.setStatus("leaving conversation failed")
		return
	}
	a.dropConversation(id, "left conversation")
}

func (a *App) deleteConversation(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	err := a.client.DeleteGroup(ctx, id)
	cancel()
	if err != nil {
		a.log.WithError(err).WithField("conversation_id", id).Error("deleting conversation failed")
		a.setStatus("deleting conversation failed")
		return
	}
	a.dropConversation(id, "conversation deleted")
}

func (a *App) dropConversation(id int64, status string) {
	a.state.Remove(id)
	if a.active() == id {
		a.setActive(0)
	}
	a.ui.QueueUpdateDraw(func() {
		a.fillTree()
		a.thread.Clear()
		a.thread.SetTitle("Thread")
	})
	a.setStatus(status)
}
