package ui

import (
	"fmt"
	"strings"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// folderChoices returns dropdown labels and the folder IDs behind them.
// Index 0 is always the root. Folders in skip are left out.
func folderChoices(folders []models.Folder, rootLabel string, skip map[string]bool) ([]string, []*string) {
	options := []string{rootLabel}
	ids := []*string{nil}
	for _, row := range folderRows(folders)[1:] {
		if skip[*row.ID] {
			continue
		}
		options = append(options, row.Label())
		ids = append(ids, row.ID)
	}
	return options, ids
}

func choiceIndex(ids []*string, id *string) int {
	if id == nil {
		return 0
	}
	for i, candidate := range ids {
		if candidate != nil && *candidate == *id {
			return i
		}
	}
	return 0
}

func (a *App) listFolders() []models.Folder {
	ctx, cancel := a.ctx()
	defer cancel()
	folders, err := a.svc.Folders.List(ctx, a.userID)
	if err != nil {
		return []models.Folder{}
	}
	return folders
}

func (a *App) showForm(b *models.Bookmark, edit bool) {
	options, folderIDs := folderChoices(a.listFolders(), "None", nil)
	if !edit && b.FolderID == nil && a.selectedFolder != nil {
		id := *a.selectedFolder
		b.FolderID = &id
	}
	tags := strings.Join(b.Tags, ", ")

	form := tview.NewForm()
	form.AddInputField("Title", b.Title, 60, nil, func(t string) { b.Title = t })
	form.AddInputField("URL", b.URL, 60, nil, func(t string) { b.URL = t })
	form.AddInputField("Description", b.Description, 60, nil, func(t string) { b.Description = t })
	form.AddInputField("Category", b.Category, 30, nil, func(t string) { b.Category = t })
	form.AddInputField("Tags", tags, 60, nil, func(t string) { tags = t })
	form.AddDropDown("Folder", options, choiceIndex(folderIDs, b.FolderID), func(_ string, index int) {
		if index >= 0 && index < len(folderIDs) {
			b.FolderID = folderIDs[index]
		} else {
			b.FolderID = nil
		}
	})

	form.AddButton("Save", func() {
		if strings.TrimSpace(b.URL) == "" {
			a.showError("Error: URL is required")
			return
		}
		b.Tags = splitTags(tags)
		if err := a.saveBookmark(b, edit); err != nil {
			a.showError(fmt.Sprintf("Error saving bookmark: %v", err))
			return
		}
		a.reloadBookmarks()
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	title := "New Bookmark"
	if edit {
		title = "Edit Bookmark"
	}
	form.SetBorder(true).SetTitle(title)
	a.pages.AddPage("form", form, true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

func (a *App) saveBookmark(b *models.Bookmark, edit bool) error {
	ctx, cancel := a.ctx()
	defer cancel()
	if !edit {
		_, err := a.svc.Bookmarks.Create(ctx, a.userID, service.BookmarkInput{
			Title:       b.Title,
			URL:         b.URL,
			Description: b.Description,
			FolderID:    b.FolderID,
			Category:    b.Category,
			Tags:        b.Tags,
		}, service.CreateOptions{ResolveIcon: true})
		return err
	}
	patch := service.BookmarkPatch{
		Title:       &b.Title,
		URL:         &b.URL,
		Description: &b.Description,
		Category:    &b.Category,
		Tags:        b.Tags,
		FolderID:    b.FolderID,
		ClearFolder: b.FolderID == nil,
	}
	updated, err := a.svc.Bookmarks.Update(ctx, a.userID, b.ID, patch)
	if err != nil {
		return err
	}
	a.current = updated
	return nil
}

func (a *App) showFolderForm(f *models.Folder, edit bool) {
	folders := a.listFolders()
	var skip map[string]bool
	if edit {
		skip = subtree(folders, f.ID)
	}
	options, parentIDs := folderChoices(folders, "None (Root)", skip)

	form := tview.NewForm()
	form.AddInputField("Name", f.Name, 60, nil, func(t string) { f.Name = t })
	form.AddDropDown("Parent Folder", options, choiceIndex(parentIDs, f.ParentID), func(_ string, index int) {
		if index >= 0 && index < len(parentIDs) {
			f.ParentID = parentIDs[index]
		} else {
			f.ParentID = nil
		}
	})

	form.AddButton("Save", func() {
		if strings.TrimSpace(f.Name) == "" {
			a.showError("Error: Folder name is required")
			return
		}
		if err := a.saveFolder(f, edit); err != nil {
			a.showError(fmt.Sprintf("Error saving folder: %v", err))
			return
		}
		a.reloadFolders()
		a.reloadBookmarks()
		a.pages.RemovePage("folderForm")
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("folderForm")
		a.setMode(ModeNormal)
	})

	title := "New Folder"
	if edit {
		title = "Edit Folder"
	}
	form.SetBorder(true).SetTitle(title)
	a.pages.AddPage("folderForm", form, true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

func (a *App) saveFolder(f *models.Folder, edit bool) error {
	ctx, cancel := a.ctx()
	defer cancel()
	if !edit {
		_, err := a.svc.Folders.Create(ctx, a.userID, service.FolderInput{Name: f.Name, ParentID: f.ParentID})
		return err
	}
	_, err := a.svc.Folders.Update(ctx, a.userID, f.ID, service.FolderPatch{
		Name:        &f.Name,
		ParentID:    f.ParentID,
		ClearParent: f.ParentID == nil,
	})
	return err
}

func (a *App) showDashboard() {
	ctx, cancel := a.ctx()
	defer cancel()
	d, err := a.svc.Dashboard.Summary(ctx, a.userID)
	if err != nil {
		a.showError(fmt.Sprintf("Error loading dashboard: %v", err))
		return
	}

	view := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	view.SetText(dashboardText(d, a.now()))
	view.SetBorder(true).SetTitle("Dashboard (Esc to close)")
	view.SetDoneFunc(func(tcell.Key) {
		a.pages.RemovePage("dashboard")
		a.mode = ModeNormal
		a.restoreFocus()
	})
	a.pages.AddPage("dashboard", view, true, true)
	a.mode = ModeModal
	a.app.SetFocus(view)
}

func (a *App) closeModal(name string) {
	a.pages.RemovePage(name)
	if a.pages.HasPage("form") || a.pages.HasPage("folderForm") {
		a.mode = ModeForm
		return
	}
	a.mode = ModeNormal
	a.restoreFocus()
}

func (a *App) showError(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) { a.closeModal("error") })

	modal.SetBorder(true).SetTitle("Error")
	a.pages.AddPage("error", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) showConfirm(message string, onConfirm func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Cancel", "OK"}).
		SetDoneFunc(func(buttonIndex int, _ string) {
			a.closeModal("confirm")
			if buttonIndex == 1 && onConfirm != nil {
				onConfirm()
			}
		})

	modal.SetBorder(true).SetTitle("Confirm")
	a.pages.AddPage("confirm", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}
