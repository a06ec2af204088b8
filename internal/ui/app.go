package ui

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"

	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	ModeNormal = 1
	ModeSearch = 2
	ModeForm   = 3
	ModeModal  = 4
)

// callTimeout bounds every service call made from a key handler.
const callTimeout = 10 * time.Second

// App is the terminal bookmark browser.
type App struct {
	app            *tview.Application
	folderList     *tview.List
	list           *tview.List
	detail         *tview.TextView
	search         *tview.InputField
	pages          *tview.Pages
	status         *tview.TextView
	mode           uint8
	allItems       []models.Item
	items          []models.Item
	currentItem    *models.Item
	current        *models.Bookmark
	svc            *service.Services
	userID         string
	logger         *slog.Logger
	now            func() time.Time
	selectedFolder *string
	focusOnFolders bool
	folderItems    []folderItem
	folderNames    map[string]string
}

// NewApp creates the browser for one user.
func NewApp(svc *service.Services, userID string, logger *slog.Logger) *App {
	if userID == "" {
		userID = models.DefaultUserID
	}
	return &App{
		app:         tview.NewApplication(),
		folderList:  tview.NewList(),
		list:        tview.NewList(),
		detail:      tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		search:      tview.NewInputField().SetLabel("Search: "),
		pages:       tview.NewPages(),
		status:      tview.NewTextView().SetDynamicColors(true),
		mode:        ModeNormal,
		svc:         svc,
		userID:      userID,
		logger:      logging.NewComponentLogger(logger, "tui"),
		now:         time.Now,
		folderNames: map[string]string{},
	}
}

// Run builds the layout and blocks until the user quits.
func (a *App) Run() error {
	a.list.SetBorder(true).SetTitle("Items")
	a.detail.SetBorder(true).SetTitle("Details")
	a.folderList.SetBorder(true).SetTitle("Folders")

	cols := tview.NewFlex().
		AddItem(a.folderList, 0, 1, false).
		AddItem(a.list, 0, 3, true).
		AddItem(a.detail, 0, 2, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, false).
		AddItem(cols, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.pages.AddPage("main", main, true, true)

	if err := a.fillFolderList(); err != nil {
		return err
	}
	if err := a.loadFolderContent(); err != nil {
		return err
	}

	a.search.SetChangedFunc(a.onSearchChange)
	a.search.SetDoneFunc(a.onSearchDone)
	a.list.SetChangedFunc(a.onSelect)

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(a.globalInput)
	a.updateStatus()

	a.focusOnFolders = false
	a.app.SetFocus(a.list)
	return a.app.Run()
}

func (a *App) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func (a *App) updateStatus() {
	keys := itemKeys
	if a.focusOnFolders {
		keys = folderKeys
	}
	a.status.SetText(keys + countText(a.items))
}

func (a *App) reloadBookmarks() {
	if err := a.loadFolderContent(); err != nil {
		a.clearItems()
	}
	a.updateStatus()
}

func (a *App) clearItems() {
	a.allItems = []models.Item{}
	a.items = []models.Item{}
	a.fillList()
}

func (a *App) loadFolderContent() error {
	ctx, cancel := a.ctx()
	defer cancel()

	items, err := a.svc.Folders.Items(ctx, a.userID, a.selectedFolder)
	if err != nil {
		a.logger.Warn("load folder content failed", "error", err)
		a.clearItems()
		return err
	}
	a.allItems = items

	if text := a.search.GetText(); text != "" {
		a.applyFilter(text)
	} else {
		a.items = a.allItems
		a.fillList()
	}

	if a.selectedFolder == nil {
		a.list.SetTitle("Items (Root)")
	} else if name, ok := a.folderNames[*a.selectedFolder]; ok {
		a.list.SetTitle(fmt.Sprintf("Items (%s)", name))
	} else {
		a.list.SetTitle("Items")
	}
	return nil
}

// applyFilter searches every bookmark at the root and filters the loaded
// items inside a folder.
func (a *App) applyFilter(text string) {
	if text == "" {
		a.items = a.allItems
		a.fillList()
		return
	}

	if a.selectedFolder == nil {
		ctx, cancel := a.ctx()
		defer cancel()
		bookmarks, err := a.svc.Bookmarks.Search(ctx, a.userID, text, nil)
		if err != nil {
			a.items = []models.Item{}
			a.fillList()
			return
		}
		items := make([]models.Item, 0, len(bookmarks))
		for _, b := range bookmarks {
			items = append(items, models.ItemFromBookmark(b))
		}
		a.items = items
		a.fillList()
		return
	}

	a.items = filterItems(a.allItems, text)
	a.fillList()
}

func (a *App) onFolderSelect(item folderItem) {
	a.selectedFolder = nil
	if item.ID != nil {
		id := *item.ID
		a.selectedFolder = &id
	}

	if item.ID == nil {
		a.folderList.SetTitle("Folders (All)")
	} else {
		a.folderList.SetTitle(fmt.Sprintf("Folders (%s)", item.Name))
	}

	a.reloadBookmarks()
	a.focusOnFolders = false
	a.app.SetFocus(a.list)
}

func (a *App) fillList() {
	a.list.Clear()
	for i := range a.items {
		index := i
		item := a.items[i]

		var mainText, secondaryText string
		if item.Type == models.ItemTypeFolder {
			mainText = "📁 " + item.Name
			secondaryText = "Folder"
		} else {
			mainText = item.Name
			if item.URL != nil {
				secondaryText = *item.URL
			}
		}

		a.list.AddItem(mainText, secondaryText, 0, func() { a.selectItem(index) })
	}

	if len(a.items) > 0 {
		a.selectItem(0)
		return
	}
	a.currentItem = nil
	a.current = nil
	a.showDetails()
}

func (a *App) selectItem(index int) {
	if index < 0 || index >= len(a.items) {
		return
	}
	a.currentItem = &a.items[index]
	a.current = nil
	if a.currentItem.Type == models.ItemTypeBookmark {
		a.loadBookmark(a.currentItem.ID)
	}
	a.showDetails()
}

// loadBookmark fetches the full bookmark behind a list item.
func (a *App) loadBookmark(id string) {
	ctx, cancel := a.ctx()
	defer cancel()
	b, err := a.svc.Bookmarks.Get(ctx, a.userID, id)
	if err != nil {
		a.logger.Debug("load bookmark failed", "bookmark_id", id, "error", err)
		return
	}
	a.current = b
}

func (a *App) reloadFolders() {
	if err := a.fillFolderList(); err != nil {
		a.showError(fmt.Sprintf("Error loading folders: %v", err))
	}
}

func (a *App) fillFolderList() error {
	ctx, cancel := a.ctx()
	defer cancel()

	folders, err := a.svc.Folders.List(ctx, a.userID)
	if err != nil {
		return err
	}

	a.folderNames = make(map[string]string, len(folders))
	for _, f := range folders {
		a.folderNames[f.ID] = f.Name
	}

	a.folderList.Clear()
	a.folderItems = folderRows(folders)
	for _, item := range a.folderItems {
		a.folderList.AddItem(item.Label(), "", 0, nil)
	}
	a.folderList.SetTitle("Folders (All)")
	return nil
}

func (a *App) folderName(id *string) string {
	if id == nil {
		return ""
	}
	return a.folderNames[*id]
}

func (a *App) showDetails() {
	if a.currentItem == nil {
		a.detail.SetText("")
		return
	}
	item := a.currentItem
	if item.Type == models.ItemTypeFolder {
		a.detail.SetText(folderDetails(item, a.folderName(item.ParentID)))
		return
	}
	if a.current == nil {
		a.detail.SetText(itemDetails(item, a.folderName(item.ParentID)))
		return
	}
	a.detail.SetText(bookmarkDetails(a.current, a.folderName(a.current.FolderID), a.now()))
}

func (a *App) setMode(m uint8) {
	a.mode = m
	switch m {
	case ModeSearch:
		a.app.SetFocus(a.search)
	case ModeNormal:
		a.restoreFocus()
	}
}

func (a *App) restoreFocus() {
	if a.focusOnFolders {
		a.app.SetFocus(a.folderList)
	} else {
		a.app.SetFocus(a.list)
	}
}

func (a *App) toggleFocus() {
	a.focusOnFolders = !a.focusOnFolders
	a.restoreFocus()
	if a.selectedFolder != nil {
		a.folderList.SetTitle(fmt.Sprintf("Folders (%s)", a.folderNames[*a.selectedFolder]))
	} else {
		a.folderList.SetTitle("Folders (All)")
	}
	a.updateStatus()
}

func (a *App) onSearchChange(text string) {
	a.applyFilter(text)
}

func (a *App) onSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.setMode(ModeNormal)
	case tcell.KeyEscape:
		a.search.SetText("")
		a.reloadBookmarks()
		a.setMode(ModeNormal)
	}
}

func (a *App) onSelect(index int, _, _ string, _ rune) {
	a.selectItem(index)
}

func (a *App) currentFolderRow() (folderItem, bool) {
	i := a.folderList.GetCurrentItem()
	if i < 0 || i >= len(a.folderItems) {
		return folderItem{}, false
	}
	return a.folderItems[i], true
}

func (a *App) globalInput(event *tcell.EventKey) *tcell.EventKey {
	// Open modals handle their own keys.
	if a.pages.HasPage("confirm") || a.pages.HasPage("error") || a.pages.HasPage("dashboard") {
		return event
	}

	switch a.mode {
	case ModeNormal:
		if event.Key() == tcell.KeyTab {
			a.toggleFocus()
			return nil
		}
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case '/':
				a.setMode(ModeSearch)
				return nil
			case 'D':
				a.showDashboard()
				return nil
			}
		}
		if a.focusOnFolders {
			return a.folderInput(event)
		}
		return a.itemInput(event)
	case ModeForm:
		if event.Key() == tcell.KeyEscape {
			a.closeForms()
		}
	}
	return event
}

func (a *App) folderInput(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		if row, ok := a.currentFolderRow(); ok {
			a.onFolderSelect(row)
		}
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'a':
			a.showFolderForm(&models.Folder{}, false)
			return nil
		case 'e':
			if row, ok := a.currentFolderRow(); ok && row.ID != nil {
				a.editFolder(*row.ID)
			}
			return nil
		case 'd':
			if row, ok := a.currentFolderRow(); ok && row.ID != nil {
				a.confirmDeleteFolder(*row.ID, row.Name)
			}
			return nil
		}
	}
	return event
}

func (a *App) itemInput(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		a.openCurrent()
		return nil
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.goUp()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'a':
			b := models.Bookmark{}
			if a.selectedFolder != nil {
				id := *a.selectedFolder
				b.FolderID = &id
			}
			a.showForm(&b, false)
			return nil
		case 'e':
			a.editCurrent()
			return nil
		case 'd':
			a.deleteCurrent()
			return nil
		case 'f':
			a.toggleFavorite()
			return nil
		case 'i':
			a.analyzeCurrent()
			return nil
		}
	}
	return event
}

func (a *App) openCurrent() {
	if a.currentItem == nil {
		return
	}
	switch a.currentItem.Type {
	case models.ItemTypeBookmark:
		if a.currentItem.URL != nil && *a.currentItem.URL != "" {
			openURL(*a.currentItem.URL)
		}
	case models.ItemTypeFolder:
		id := a.currentItem.ID
		a.selectedFolder = &id
		a.reloadBookmarks()
	}
}

// goUp moves the item list to the parent of the selected folder.
func (a *App) goUp() {
	if a.selectedFolder == nil {
		return
	}
	ctx, cancel := a.ctx()
	defer cancel()
	f, err := a.svc.Folders.Get(ctx, a.userID, *a.selectedFolder)
	if err != nil {
		a.selectedFolder = nil
	} else {
		a.selectedFolder = f.ParentID
	}
	a.reloadBookmarks()
}

func (a *App) editCurrent() {
	if a.currentItem == nil {
		return
	}
	if a.currentItem.Type == models.ItemTypeFolder {
		a.editFolder(a.currentItem.ID)
		return
	}
	if a.current != nil {
		b := *a.current
		a.showForm(&b, true)
	}
}

func (a *App) editFolder(id string) {
	ctx, cancel := a.ctx()
	defer cancel()
	f, err := a.svc.Folders.Get(ctx, a.userID, id)
	if err != nil {
		a.showError(fmt.Sprintf("Error loading folder: %v", err))
		return
	}
	a.showFolderForm(f, true)
}

func (a *App) deleteCurrent() {
	if a.currentItem == nil {
		return
	}
	if a.currentItem.Type == models.ItemTypeFolder {
		a.confirmDeleteFolder(a.currentItem.ID, a.currentItem.Name)
		return
	}
	if a.current == nil {
		return
	}
	b := a.current
	a.showConfirm(fmt.Sprintf("Are you sure you want to delete bookmark '%s'?", b.Title), func() {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.svc.Bookmarks.Delete(ctx, a.userID, b.ID, false); err != nil {
			a.showError(fmt.Sprintf("Error deleting bookmark: %v", err))
			return
		}
		a.reloadBookmarks()
	})
}

func (a *App) confirmDeleteFolder(id, name string) {
	a.showConfirm(fmt.Sprintf("Are you sure you want to delete folder '%s'?", name), func() {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.svc.Folders.Delete(ctx, a.userID, id); err != nil {
			a.showError(fmt.Sprintf("Error deleting folder: %v", err))
			return
		}
		if a.selectedFolder != nil && *a.selectedFolder == id {
			a.selectedFolder = nil
		}
		a.reloadFolders()
		a.reloadBookmarks()
	})
}

func (a *App) toggleFavorite() {
	if a.current == nil {
		return
	}
	favorite := !a.current.Favorite
	ctx, cancel := a.ctx()
	defer cancel()
	b, err := a.svc.Bookmarks.Update(ctx, a.userID, a.current.ID, service.BookmarkPatch{Favorite: &favorite})
	if err != nil {
		a.showError(fmt.Sprintf("Error updating bookmark: %v", err))
		return
	}
	a.current = b
	a.showDetails()
}

// analyzeCurrent runs content analysis off the UI goroutine and redraws
// the details when it finishes.
func (a *App) analyzeCurrent() {
	if a.current == nil {
		return
	}
	id := a.current.ID
	a.status.SetText("[yellow]Analyzing…[-]")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		b, _, err := a.svc.Bookmarks.Analyze(ctx, a.userID, id, false)
		a.app.QueueUpdateDraw(func() {
			a.updateStatus()
			if err != nil {
				a.showError(fmt.Sprintf("Error analyzing bookmark: %v", err))
				return
			}
			if a.current != nil && a.current.ID == b.ID {
				a.current = b
				a.showDetails()
			}
		})
	}()
}

func (a *App) closeForms() {
	a.pages.RemovePage("form")
	a.pages.RemovePage("folderForm")
	a.setMode(ModeNormal)
}

func openURL(url string) {
	var cmd string
	var args []string
	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default:
		cmd = "xdg-open"
	}
	args = append(args, url)
	_ = exec.Command(cmd, args...).Start()
}
