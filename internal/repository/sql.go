package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dastanaron/bookaimark/internal/models"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name          string
	numbered      bool // $1, $2 placeholders instead of ?
	timestampType string
	noLimit       string
}

var (
	sqliteDialect   = dialect{name: "sqlite", timestampType: "TIMESTAMP", noLimit: "-1"}
	postgresDialect = dialect{name: "postgres", numbered: true, timestampType: "TIMESTAMPTZ", noLimit: "ALL"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type sqlConn struct {
	db *sql.DB
	d  dialect
}

func (c sqlConn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c sqlConn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c sqlConn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// inTx runs fn inside a transaction, rolling back on error.
func (c sqlConn) inTx(ctx context.Context, fn func(exec func(query string, args ...any) (sql.Result, error)) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		return tx.ExecContext(ctx, c.d.rebind(query), args...)
	}
	if err := fn(exec); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqlRepository implements Repository over database/sql. SQLite and
// Postgres share it and differ only in dialect and schema bootstrap.
type sqlRepository struct {
	conn          sqlConn
	bookmarks     *bookmarkRepo
	folders       *folderRepo
	playbooks     *playbookRepo
	comments      *commentRepo
	notifications *notificationRepo
	purchases     *purchaseRepo
}

func newSQLRepository(db *sql.DB, d dialect) *sqlRepository {
	conn := sqlConn{db: db, d: d}
	return &sqlRepository{
		conn:          conn,
		bookmarks:     &bookmarkRepo{conn},
		folders:       &folderRepo{conn},
		playbooks:     &playbookRepo{conn},
		comments:      &commentRepo{conn},
		notifications: &notificationRepo{conn},
		purchases:     &purchaseRepo{conn},
	}
}

func (r *sqlRepository) Bookmarks() BookmarkRepository         { return r.bookmarks }
func (r *sqlRepository) Folders() FolderRepository             { return r.folders }
func (r *sqlRepository) Playbooks() PlaybookRepository         { return r.playbooks }
func (r *sqlRepository) Comments() CommentRepository           { return r.comments }
func (r *sqlRepository) Notifications() NotificationRepository { return r.notifications }
func (r *sqlRepository) Purchases() PurchaseRepository         { return r.purchases }

func (r *sqlRepository) Ping(ctx context.Context) error {
	return r.conn.db.PingContext(ctx)
}

// Close closes the database connection
func (r *sqlRepository) Close() error {
	return r.conn.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// encodeJSON stores v without HTML escaping so tag filters can match the
// stored text literally.
func encodeJSON(v any) string {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// tagPattern matches one element of an encoded tag array.
func tagPattern(tag string) string {
	return "%" + escapeLike(encodeJSON(models.NormalizeTag(tag))) + "%"
}

func decodeStrings(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	if out == nil {
		out = []string{}
	}
	return out
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// escapeLike escapes LIKE wildcards; queries use ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// bookmarkRepo implements BookmarkRepository
type bookmarkRepo struct {
	sqlConn
}

const bookmarkSelect = `
	SELECT b.id, b.user_id, b.title, b.url, b.description, b.icon, b.folder_id, f.name,
		b.category, b.tags, b.favorite, b.summary, b.sentiment, b.analyzed_at,
		b.created_at, b.updated_at, b.deleted_at
	FROM bookmarks AS b
	LEFT JOIN folders AS f ON f.id = b.folder_id`

func scanBookmark(row rowScanner) (*models.Bookmark, error) {
	var (
		b                     models.Bookmark
		tags                  string
		analyzedAt, deletedAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.Description, &b.Icon, &b.FolderID, &b.FolderName,
		&b.Category, &tags, &b.Favorite, &b.Summary, &b.Sentiment, &analyzedAt,
		&b.CreatedAt, &b.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	b.Tags = decodeStrings(tags)
	b.AnalyzedAt = timePtr(analyzedAt)
	b.DeletedAt = timePtr(deletedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func bookmarkWhere(f models.BookmarkFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.UserID != "" {
		clauses = append(clauses, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	switch {
	case f.DeletedOnly:
		clauses = append(clauses, "b.deleted_at IS NOT NULL")
	case !f.IncludeDeleted:
		clauses = append(clauses, "b.deleted_at IS NULL")
	}
	if f.RootOnly {
		clauses = append(clauses, "b.folder_id IS NULL")
	}
	if f.FolderID != nil {
		clauses = append(clauses, "b.folder_id = ?")
		args = append(args, *f.FolderID)
	}
	if f.FavoriteOnly {
		clauses = append(clauses, "b.favorite = ?")
		args = append(args, true)
	}
	if f.Category != "" {
		clauses = append(clauses, "LOWER(b.category) = ?")
		args = append(args, strings.ToLower(f.Category))
	}
	if f.Tag != "" {
		clauses = append(clauses, `b.tags LIKE ? ESCAPE '\'`)
		args = append(args, tagPattern(f.Tag))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		clauses = append(clauses, `(LOWER(b.title) LIKE ? ESCAPE '\' OR LOWER(b.url) LIKE ? ESCAPE '\'
			OR LOWER(b.description) LIKE ? ESCAPE '\' OR b.tags LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, tagPattern(q))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *bookmarkRepo) List(ctx context.Context, filter models.BookmarkFilter) ([]models.Bookmark, error) {
	where, args := bookmarkWhere(filter)
	query := bookmarkSelect + where + " ORDER BY LOWER(b.title), b.id"
	switch {
	case filter.Limit > 0:
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		// OFFSET needs a LIMIT clause in SQLite.
		query += " LIMIT " + r.d.noLimit
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, *b)
	}
	return bookmarks, rows.Err()
}

func (r *bookmarkRepo) GetByID(ctx context.Context, id string) (*models.Bookmark, error) {
	b, err := scanBookmark(r.queryRow(ctx, bookmarkSelect+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookmarkRepo) GetByURL(ctx context.Context, userID, url string) (*models.Bookmark, error) {
	b, err := scanBookmark(r.queryRow(ctx,
		bookmarkSelect+" WHERE b.user_id = ? AND b.url = ? AND b.deleted_at IS NULL ORDER BY b.created_at, b.id LIMIT 1",
		userID, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookmarkRepo) Create(ctx context.Context, b *models.Bookmark) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = nowUTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	_, err := r.exec(ctx, `
		INSERT INTO bookmarks(id, user_id, title, url, description, icon, folder_id, category, tags,
			favorite, summary, sentiment, analyzed_at, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Title, b.URL, b.Description, b.Icon, b.FolderID, b.Category, encodeJSON(b.Tags),
		b.Favorite, b.Summary, b.Sentiment, nullableTime(b.AnalyzedAt), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
		nullableTime(b.DeletedAt),
	)
	return err
}

func (r *bookmarkRepo) Update(ctx context.Context, b *models.Bookmark) error {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	_, err := r.exec(ctx, `
		UPDATE bookmarks SET title = ?, url = ?, description = ?, icon = ?, folder_id = ?, category = ?,
			tags = ?, favorite = ?, summary = ?, sentiment = ?, analyzed_at = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		b.Title, b.URL, b.Description, b.Icon, b.FolderID, b.Category,
		encodeJSON(b.Tags), b.Favorite, b.Summary, b.Sentiment, nullableTime(b.AnalyzedAt), b.UpdatedAt.UTC(),
		nullableTime(b.DeletedAt), b.ID,
	)
	return err
}

func (r *bookmarkRepo) Upsert(ctx context.Context, b *models.Bookmark) (bool, error) {
	existing, err := r.GetByURL(ctx, b.UserID, b.URL)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, r.Create(ctx, b)
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = nowUTC()
	}
	return false, r.Update(ctx, b)
}

func (r *bookmarkRepo) Delete(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	return err
}

// folderRepo implements FolderRepository
type folderRepo struct {
	sqlConn
}

const folderSelect = `SELECT id, user_id, name, parent_id, color, icon, created_at FROM folders`

func scanFolder(row rowScanner) (*models.Folder, error) {
	var f models.Folder
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.ParentID, &f.Color, &f.Icon, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

func (r *folderRepo) List(ctx context.Context, userID string) ([]models.Folder, error) {
	query := folderSelect
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	rows, err := r.query(ctx, query+" ORDER BY LOWER(name), id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *folderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	f, err := scanFolder(r.queryRow(ctx, folderSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (r *folderRepo) Create(ctx context.Context, f *models.Folder) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = nowUTC()
	}
	_, err := r.exec(ctx, `INSERT INTO folders(id, user_id, name, parent_id, color, icon, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Name, f.ParentID, f.Color, f.Icon, f.CreatedAt.UTC())
	return err
}

func (r *folderRepo) Update(ctx context.Context, f *models.Folder) error {
	_, err := r.exec(ctx, `UPDATE folders SET name = ?, parent_id = ?, color = ?, icon = ? WHERE id = ?`,
		f.Name, f.ParentID, f.Color, f.Icon, f.ID)
	return err
}

func (r *folderRepo) Delete(ctx context.Context, id string) error {
	folder, err := r.GetByID(ctx, id)
	if err != nil || folder == nil {
		return err
	}
	return r.inTx(ctx, func(exec func(string, ...any) (sql.Result, error)) error {
		if _, err := exec(`UPDATE bookmarks SET folder_id = NULL WHERE folder_id = ?`, id); err != nil {
			return err
		}
		if _, err := exec(`UPDATE folders SET parent_id = ? WHERE parent_id = ?`, folder.ParentID, id); err != nil {
			return err
		}
		_, err := exec(`DELETE FROM folders WHERE id = ?`, id)
		return err
	})
}

func (r *folderRepo) Upsert(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error) {
	query := folderSelect + " WHERE user_id = ? AND name = ?"
	args := []any{userID, name}
	if parentID == nil {
		query += " AND parent_id IS NULL"
	} else {
		query += " AND parent_id = ?"
		args = append(args, *parentID)
	}
	f, err := scanFolder(r.queryRow(ctx, query+" ORDER BY created_at, id LIMIT 1", args...))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Create new folder
	f = &models.Folder{UserID: userID, Name: name, ParentID: parentID}
	if err := r.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// playbookRepo implements PlaybookRepository
type playbookRepo struct {
	sqlConn
}

const playbookSelect = `SELECT id, user_id, title, description, category, tags, price_cents, status, items,
	likes, acquisitions, created_at, updated_at FROM playbooks`

func scanPlaybook(row rowScanner) (*models.Playbook, error) {
	var (
		p     models.Playbook
		tags  string
		items string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Category, &tags, &p.PriceCents, &p.Status,
		&items, &p.Likes, &p.Acquisitions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = decodeStrings(tags)
	p.Items = []models.PlaybookItem{}
	if items != "" {
		_ = json.Unmarshal([]byte(items), &p.Items)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *playbookRepo) List(ctx context.Context, filter models.PlaybookFilter) ([]models.Playbook, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.PublishedOnly {
		clauses = append(clauses, "status = ?")
		args = append(args, string(models.PlaybookPublished))
	}
	if filter.Category != "" {
		clauses = append(clauses, "LOWER(category) = ?")
		args = append(args, strings.ToLower(filter.Category))
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	query := playbookSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+" ORDER BY created_at DESC, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playbooks := []models.Playbook{}
	for rows.Next() {
		p, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, *p)
	}
	return playbooks, rows.Err()
}

func (r *playbookRepo) GetByID(ctx context.Context, id string) (*models.Playbook, error) {
	p, err := scanPlaybook(r.queryRow(ctx, playbookSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *playbookRepo) Create(ctx context.Context, p *models.Playbook) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = models.PlaybookDraft
	}
	_, err := r.exec(ctx, `
		INSERT INTO playbooks(id, user_id, title, description, category, tags, price_cents, status, items,
			likes, acquisitions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Description, p.Category, encodeJSON(nonNilStrings(p.Tags)), p.PriceCents,
		string(p.Status), encodeJSON(nonNilItems(p.Items)), p.Likes, p.Acquisitions, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	return err
}

func (r *playbookRepo) Update(ctx context.Context, p *models.Playbook) error {
	_, err := r.exec(ctx, `
		UPDATE playbooks SET title = ?, description = ?, category = ?, tags = ?, price_cents = ?, status = ?,
			items = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.Category, encodeJSON(nonNilStrings(p.Tags)), p.PriceCents, string(p.Status),
		encodeJSON(nonNilItems(p.Items)), p.UpdatedAt.UTC(), p.ID,
	)
	return err
}

func (r *playbookRepo) Increment(ctx context.Context, id string, counter PlaybookCounter, at time.Time) (*models.Playbook, error) {
	var column string
	switch counter {
	case CounterLikes:
		column = "likes"
	case CounterAcquisitions:
		column = "acquisitions"
	default:
		return nil, fmt.Errorf("unknown playbook counter %q", counter)
	}
	res, err := r.exec(ctx, `UPDATE playbooks SET `+column+` = `+column+` + 1, updated_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *playbookRepo) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(exec func(string, ...any) (sql.Result, error)) error {
		if _, err := exec(`DELETE FROM comments WHERE playbook_id = ?`, id); err != nil {
			return err
		}
		_, err := exec(`DELETE FROM playbooks WHERE id = ?`, id)
		return err
	})
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilItems(v []models.PlaybookItem) []models.PlaybookItem {
	if v == nil {
		return []models.PlaybookItem{}
	}
	return v
}

// commentRepo implements CommentRepository
type commentRepo struct {
	sqlConn
}

const commentSelect = `SELECT id, playbook_id, user_id, body, created_at FROM comments`

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.PlaybookID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *commentRepo) ListByPlaybook(ctx context.Context, playbookID string) ([]models.Comment, error) {
	rows, err := r.query(ctx, commentSelect+" WHERE playbook_id = ? ORDER BY created_at, id", playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(r.queryRow(ctx, commentSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *commentRepo) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	_, err := r.exec(ctx, `INSERT INTO comments(id, playbook_id, user_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PlaybookID, c.UserID, c.Body, c.CreatedAt.UTC())
	return err
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM comments WHERE id = ?`, id)
	return err
}

// notificationRepo implements NotificationRepository
type notificationRepo struct {
	sqlConn
}

const notificationSelect = `SELECT id, user_id, kind, title, message, link, is_read, created_at, delivered_at FROM notifications`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n           models.Notification
		deliveredAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt, &deliveredAt); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.DeliveredAt = timePtr(deliveredAt)
	return &n, nil
}

func (r *notificationRepo) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := notificationSelect + " WHERE user_id = ?"
	args := []any{userID}
	if unreadOnly {
		query += " AND is_read = ?"
		args = append(args, false)
	}
	rows, err := r.query(ctx, query+" ORDER BY created_at DESC, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(r.queryRow(ctx, notificationSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = nowUTC()
	}
	_, err := r.exec(ctx, `
		INSERT INTO notifications(id, user_id, kind, title, message, link, is_read, created_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Message, n.Link, n.Read, n.CreatedAt.UTC(), nullableTime(n.DeliveredAt))
	return err
}

func (r *notificationRepo) Update(ctx context.Context, n *models.Notification) error {
	_, err := r.exec(ctx, `UPDATE notifications SET title = ?, message = ?, link = ?, is_read = ?, delivered_at = ? WHERE id = ?`,
		n.Title, n.Message, n.Link, n.Read, nullableTime(n.DeliveredAt), n.ID)
	return err
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	return err
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.exec(ctx, `UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// purchaseRepo implements PurchaseRepository
type purchaseRepo struct {
	sqlConn
}

const purchaseSelect = `SELECT id, playbook_id, user_id, price_cents, created_at FROM purchases`

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var p models.Purchase
	if err := row.Scan(&p.ID, &p.PlaybookID, &p.UserID, &p.PriceCents, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	rows, err := r.query(ctx, purchaseSelect+" WHERE user_id = ? ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []models.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (r *purchaseRepo) Find(ctx context.Context, userID, playbookID string) (*models.Purchase, error) {
	p, err := scanPurchase(r.queryRow(ctx, purchaseSelect+" WHERE user_id = ? AND playbook_id = ? LIMIT 1", userID, playbookID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *purchaseRepo) Create(ctx context.Context, p *models.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	_, err := r.exec(ctx, `INSERT INTO purchases(id, playbook_id, user_id, price_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.PlaybookID, p.UserID, p.PriceCents, p.CreatedAt.UTC())
	return err
}
