package api

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/database"
	"github.com/sandiJamlu23/library-app/internal/services"
	"github.com/sandiJamlu23/library-app/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	srv     *httptest.Server
	books   *services.BookService
	users   *services.UserService
	manager *auth.Manager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Reset(ctx, db))
	_, err = database.Seed(ctx, db)
	require.NoError(t, err)

	renderer, err := views.New()
	require.NoError(t, err)
	signer, err := auth.NewSigner("router-test")
	require.NoError(t, err)

	books := services.NewBookService(db)
	users := services.NewUserService(db)
	manager := auth.NewManager(users, &auth.BcryptHasher{Cost: bcrypt.MinCost}, auth.NewSessionStore(time.Hour), signer, auth.CookieOptions{Name: "library_session"})

	srv := httptest.NewServer(NewRouter(Deps{
		DB:    db,
		Books: books,
		Auth:  manager,
		Views: renderer,
	}))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, books: books, users: users, manager: manager}
}

// client keeps cookies and does not follow redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	code     int
	location string
	body     string
}

func (a *testApp) do(t *testing.T, c *http.Client, method, path string, form url.Values) response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{code: resp.StatusCode, location: resp.Header.Get("Location"), body: string(raw)}
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) response {
	return a.do(t, c, http.MethodGet, path, nil)
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) response {
	if form == nil {
		form = url.Values{}
	}
	return a.do(t, c, http.MethodPost, path, form)
}

func (a *testApp) loggedIn(t *testing.T, username string) *http.Client {
	t.Helper()
	c := a.client(t)
	_, err := a.manager.Register(context.Background(), username, "secret1")
	require.NoError(t, err)
	resp := a.post(t, c, "/login", url.Values{"username": {username}, "password": {"secret1"}})
	require.Equal(t, http.StatusFound, resp.code)
	require.Equal(t, "/books", resp.location)
	return c
}

func (a *testApp) borrowed(t *testing.T, id int64) bool {
	t.Helper()
	book, err := a.books.GetBook(context.Background(), id)
	require.NoError(t, err)
	return book.IsBorrowed
}

var errorPara = regexp.MustCompile(`<p class="error">([^<]*)</p>`)

func TestIndexAndHealth(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp := app.get(t, c, "/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Welcome to the Library")

	resp = app.get(t, c, "/healthz")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, "ok\n", resp.body)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	resp := app.get(t, app.client(t), "/nope")
	assert.Equal(t, http.StatusNotFound, resp.code)
	assert.Contains(t, resp.body, "404 Not Found")
}

func TestBooksListing(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp := app.get(t, c, "/books")
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, 3, strings.Count(resp.body, `<li class="book"`))

	resp = app.get(t, c, "/books?search=Orwell")
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, 1, strings.Count(resp.body, `<li class="book"`))
	assert.Contains(t, resp.body, "George Orwell")
	assert.NotContains(t, resp.body, "Harper Lee")

	resp = app.post(t, c, "/books", url.Values{"search": {"mockingbird"}})
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, 1, strings.Count(resp.body, `<li class="book"`))
	assert.Contains(t, resp.body, "Harper Lee")

	resp = app.get(t, c, "/books?search=")
	assert.Equal(t, 3, strings.Count(resp.body, `<li class="book"`))

	resp = app.get(t, c, "/books?search=Tolkien")
	assert.Contains(t, resp.body, "No books found.")
}

func TestUnauthenticatedLendingRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, path := range []string{"/borrow/1", "/return/1"} {
		resp := app.get(t, c, path)
		assert.Equal(t, http.StatusFound, resp.code, path)
		assert.Equal(t, "/login", resp.location, path)
	}

	resp := app.post(t, c, "/borrow/1", nil)
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/login", resp.location)
	assert.False(t, app.borrowed(t, 1))

	_, err := app.books.SetBorrowed(context.Background(), 2, true)
	require.NoError(t, err)
	resp = app.post(t, c, "/return/2", nil)
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/login", resp.location)
	assert.True(t, app.borrowed(t, 2))

	resp = app.get(t, c, "/login")
	assert.Contains(t, resp.body, "Please log in to continue.")
}

func TestBorrowReturnFlow(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn(t, "alice")

	resp := app.get(t, c, "/borrow/1")
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "The Great Gatsby")
	assert.Contains(t, resp.body, `action="/borrow/1"`)
	assert.False(t, app.borrowed(t, 1), "confirmation page does not mutate")

	steps := []struct {
		path     string
		flash    string
		borrowed bool
	}{
		{path: "/borrow/1", flash: "Book borrowed successfully.", borrowed: true},
		{path: "/borrow/1", flash: "This book is already borrowed.", borrowed: true},
		{path: "/return/1", flash: "Book returned successfully.", borrowed: false},
		{path: "/return/1", flash: "This book is already available.", borrowed: false},
	}
	for _, step := range steps {
		resp := app.post(t, c, step.path, nil)
		require.Equal(t, http.StatusFound, resp.code, step.path)
		assert.Equal(t, "/books", resp.location, step.path)
		assert.Equal(t, step.borrowed, app.borrowed(t, 1), step.path)

		page := app.get(t, c, "/books")
		assert.Contains(t, page.body, step.flash)
	}
}

func TestAnyUserMayReturn(t *testing.T) {
	app := newTestApp(t)
	alice := app.loggedIn(t, "alice")
	bob := app.loggedIn(t, "bobby")

	app.post(t, alice, "/borrow/3", nil)
	require.True(t, app.borrowed(t, 3))

	resp := app.post(t, bob, "/return/3", nil)
	assert.Equal(t, http.StatusFound, resp.code)
	assert.False(t, app.borrowed(t, 3))
}

func TestLendingUnknownBook(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn(t, "alice")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/borrow/999"},
		{http.MethodPost, "/borrow/999"},
		{http.MethodGet, "/return/999"},
		{http.MethodPost, "/return/999"},
		{http.MethodGet, "/borrow/abc"},
		{http.MethodPost, "/return/-1"},
	} {
		var resp response
		if tc.method == http.MethodPost {
			resp = app.post(t, c, tc.path, nil)
		} else {
			resp = app.get(t, c, tc.path)
		}
		assert.Equal(t, http.StatusNotFound, resp.code, tc.method+" "+tc.path)
		assert.Contains(t, resp.body, "Book not found.")
	}
}

func TestRegister(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp := app.get(t, c, "/register")
	assert.Equal(t, http.StatusOK, resp.code)

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	resp = app.post(t, c, "/register", form)
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/login", resp.location)

	resp = app.get(t, c, "/login")
	assert.Contains(t, resp.body, "Registration successful. Please log in.")

	resp = app.post(t, c, "/register", form)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "That username is already taken.")
	assert.Contains(t, resp.body, `value="alice"`)

	n, err := app.users.CountUsersByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp = app.post(t, c, "/register", url.Values{"username": {"bob"}, "password": {"abc"}})
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Password must be between 6 and 72 characters.")
	_, err = app.users.GetUserByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, services.ErrNotFound)

	// 40 characters, 80 bytes.
	resp = app.post(t, c, "/register", url.Values{"username": {"zoe"}, "password": {strings.Repeat("é", 40)}})
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Password is too long.")
	_, err = app.users.GetUserByUsername(context.Background(), "zoe")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestLoginFailureDoesNotRevealUsername(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	_, err := app.manager.Register(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	wrongPassword := app.post(t, c, "/login", url.Values{"username": {"alice"}, "password": {"nope-nope"}})
	unknownUser := app.post(t, c, "/login", url.Values{"username": {"mallory"}, "password": {"secret1"}})

	require.Equal(t, http.StatusOK, wrongPassword.code)
	require.Equal(t, http.StatusOK, unknownUser.code)
	a := errorPara.FindStringSubmatch(wrongPassword.body)
	b := errorPara.FindStringSubmatch(unknownUser.body)
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, "Invalid username or password.", a[1])
	assert.Equal(t, a[1], b[1])
}

func TestAuthenticatedUserSkipsForms(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn(t, "alice")

	for _, path := range []string{"/login", "/register"} {
		resp := app.get(t, c, path)
		assert.Equal(t, http.StatusFound, resp.code, path)
		assert.Equal(t, "/books", resp.location, path)
	}

	resp := app.get(t, c, "/books")
	assert.Contains(t, resp.body, "Signed in as alice")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)

	resp := app.get(t, app.client(t), "/logout")
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/login", resp.location)

	c := app.loggedIn(t, "alice")
	resp = app.get(t, c, "/logout")
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/", resp.location)

	resp = app.get(t, c, "/")
	assert.Contains(t, resp.body, "You have been logged out.")
	assert.NotContains(t, resp.body, "Signed in as")

	resp = app.post(t, c, "/borrow/1", nil)
	assert.Equal(t, http.StatusFound, resp.code)
	assert.Equal(t, "/login", resp.location)
	assert.False(t, app.borrowed(t, 1))
}
