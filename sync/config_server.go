package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	stdsync "sync"

	"github.com/gin-gonic/gin"
)

// AuthTester checks a connection against Jira and returns the authenticated account's display name.
type AuthTester func(ctx context.Context, conn Connection) (string, error)

// JiraAuthTester tests a connection through the Jira REST API.
func JiraAuthTester(ctx context.Context, conn Connection) (string, error) {
	j := JiraFetcherAndUpdater{SyncContext: &SyncContext{Config: Configuration{Settings: Settings{Connection: conn}}}}
	return j.TestAuth(ctx)
}

// ConfigServer serves the configuration dialogs as a JSON API over the settings store.
type ConfigServer struct {
	Store    SettingsStore
	TestAuth AuthTester

	mu     stdsync.Mutex
	router *gin.Engine
}

func NewConfigServer(store SettingsStore, tester AuthTester) *ConfigServer {
	if tester == nil {
		tester = JiraAuthTester
	}
	s := &ConfigServer{Store: store, TestAuth: tester, router: gin.New()}
	s.router.Use(gin.Recovery())
	s.RegisterRoutes(s.router.Group("/api"))
	return s
}

func (s *ConfigServer) Handler() http.Handler { return s.router }

// Run listens on addr until the server fails.
func (s *ConfigServer) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *ConfigServer) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/connection", s.GetConnection)
	router.PUT("/connection", s.PutConnection)
	router.POST("/connection/test", s.TestConnection)

	router.GET("/tabs/:tab", s.GetTab)
	router.PUT("/tabs/:tab", s.PutTab)

	router.GET("/mapping", s.GetMapping)
	router.PUT("/mapping", s.PutMapping)
	router.PUT("/mapping/:header", s.PutMappingEntry)
	router.DELETE("/mapping/:header", s.DeleteMappingEntry)

	router.GET("/templates", s.GetTemplates)
	router.PUT("/templates/:name", s.PutTemplate)
	router.DELETE("/templates/:name", s.DeleteTemplate)
}

func (s *ConfigServer) load(c *gin.Context) (Configuration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, err := s.Store.Load()
	if err != nil {
		respondError(c, err)
		return config, false
	}
	return config, true
}

func (s *ConfigServer) update(c *gin.Context, fn func(config *Configuration) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Store.Update(fn); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

var errNotFound = errors.New("not found")

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidMapping), errors.Is(err, ErrInvalidTemplate), errors.Is(err, ErrNotConfigured):
		status = http.StatusBadRequest
	case errors.Is(err, ErrAuthFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, errNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetConnection GET /api/connection
func (s *ConfigServer) GetConnection(c *gin.Context) {
	config, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, config.Settings.Connection.Masked())
}

// PutConnection PUT /api/connection
func (s *ConfigServer) PutConnection(c *gin.Context) {
	var update Connection
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	var saved Connection
	if !s.update(c, func(config *Configuration) error {
		config.Settings.Connection = config.Settings.Connection.Merge(update)
		saved = config.Settings.Connection
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, saved.Masked())
}

// TestConnection POST /api/connection/test
// An optional body overrides stored values for the test only.
func (s *ConfigServer) TestConnection(c *gin.Context) {
	config, ok := s.load(c)
	if !ok {
		return
	}
	conn := config.Settings.Connection
	var update Connection
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&update); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		conn = conn.Merge(update)
	}
	name, err := s.TestAuth(c.Request.Context(), conn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "displayName": name})
}

// GetTab GET /api/tabs/:tab
func (s *ConfigServer) GetTab(c *gin.Context) {
	config, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, config.Settings.Tab(c.Param("tab")))
}

// PutTab PUT /api/tabs/:tab
func (s *ConfigServer) PutTab(c *gin.Context) {
	var tab TabSettings
	if err := c.ShouldBindJSON(&tab); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if tab.HeaderRow < 0 || tab.HeaderRow > 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "headerRow must be 1 or 2"})
		return
	}
	name := c.Param("tab")
	tab.ProjectKey = strings.TrimSpace(tab.ProjectKey)
	if !s.update(c, func(config *Configuration) error {
		config.Settings.Tabs[name] = tab
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, tab.WithDefaults(TabSettings{}))
}

// GetMapping GET /api/mapping
func (s *ConfigServer) GetMapping(c *gin.Context) {
	config, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, config.Mapping)
}

// PutMapping PUT /api/mapping
// Replaces the whole mapping; legacy string entries are accepted.
func (s *ConfigServer) PutMapping(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	mapping, err := ParseColumnMapping(body)
	if err != nil {
		respondError(c, err)
		return
	}
	if !s.update(c, func(config *Configuration) error {
		config.Mapping = mapping
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, mapping)
}

// PutMappingEntry PUT /api/mapping/:header
func (s *ConfigServer) PutMappingEntry(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	entry, err := ParseMappingEntry(body)
	if err != nil {
		respondError(c, err)
		return
	}
	header := strings.TrimSpace(c.Param("header"))
	var mapping ColumnMapping
	if !s.update(c, func(config *Configuration) error {
		config.Mapping[header] = entry
		mapping = config.Mapping
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, mapping)
}

// DeleteMappingEntry DELETE /api/mapping/:header
func (s *ConfigServer) DeleteMappingEntry(c *gin.Context) {
	header := strings.TrimSpace(c.Param("header"))
	if !s.update(c, func(config *Configuration) error {
		if _, ok := config.Mapping[header]; !ok {
			return errNotFound
		}
		delete(config.Mapping, header)
		return nil
	}) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTemplates GET /api/templates
func (s *ConfigServer) GetTemplates(c *gin.Context) {
	config, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, config.Templates)
}

// PutTemplate PUT /api/templates/:name
func (s *ConfigServer) PutTemplate(c *gin.Context) {
	var tpl TicketTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := ValidateTemplate(tpl); err != nil {
		respondError(c, err)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if !s.update(c, func(config *Configuration) error {
		config.Templates[name] = tpl
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate DELETE /api/templates/:name
func (s *ConfigServer) DeleteTemplate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if !s.update(c, func(config *Configuration) error {
		if _, err := config.Template(name); err != nil {
			return err
		}
		delete(config.Templates, name)
		return nil
	}) {
		return
	}
	c.Status(http.StatusNoContent)
}
