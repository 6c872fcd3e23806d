package main

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/besedka-chat/besedka/internal/chats"
	"github.com/besedka-chat/besedka/internal/db"
	"github.com/besedka-chat/besedka/internal/handlers"
	"github.com/besedka-chat/besedka/internal/metrics"
	"github.com/besedka-chat/besedka/internal/users"
	"github.com/besedka-chat/besedka/pkg/config"
)

// indexPage is a minimal manual-testing form, kept from the first
// deployment of this service.
const indexPage = `<h1>Чат</h1>
<form action="/send_message" method="post">
    <label for="chat_id">Chat ID:</label><br>
    <input type="text" id="chat_id" name="chat_id"><br>
    <label for="login">Login:</label><br>
    <input type="text" id="login" name="login"><br>
    <label for="message">Message:</label><br>
    <textarea id="message" name="message"></textarea><br>
    <input type="submit" value="Отправить">
</form>
<h2>Сообщения</h2>
<a href="/get_messages">Получить сообщения</a>
`

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func serverErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Printf(
				"HTTP %d %s %s ip=%s duration=%s errors=%q response=%q",
				c.Writer.Status(),
				c.Request.Method,
				c.Request.URL.Path,
				c.ClientIP(),
				time.Since(start).Truncate(time.Millisecond),
				c.Errors.ByType(gin.ErrorTypeAny).String(),
				strings.TrimSpace(blw.body.String()),
			)
		}
	}
}

func panicRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf(
			"panic recovered method=%s path=%s ip=%s error=%v\n%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			recovered,
			debug.Stack(),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
	})
}

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "seed":
		return runSeed(cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  besedka           Start the web server")
	fmt.Fprintln(out, "  besedka status    Show application statistics")
	fmt.Fprintln(out, "  besedka status --json")
	fmt.Fprintln(out, "  besedka seed      Fill the stores with generated test data")
	fmt.Fprintln(out, "  besedka seed --users N --chats N --messages N")
}

func runServer(cfg *config.Config) error {
	os.MkdirAll(cfg.UploadDir, 0755)

	database, err := db.New(cfg.ChatDBPath, cfg.UsersDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer database.Close()

	userSvc := users.New(database.Users())
	chatSvc := chats.New(database.Chats(), userSvc)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(cfg, userSvc, chatSvc)

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	log.Printf("Starting server on %s", addr)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigint
		log.Println("\nShutting down gracefully...")
		database.Close()
		os.Exit(0)
	}()

	return router.Run(addr)
}

func newRouter(cfg *config.Config, userSvc *users.Service, chatSvc *chats.Service) *gin.Engine {
	authHandler := handlers.NewAuthHandler(userSvc)
	chatHandler := handlers.NewChatHandler(chatSvc, userSvc)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, cfg.PublicBaseURL)

	router := gin.New()
	router.Use(serverErrorLogger())
	router.Use(gin.Logger())
	router.Use(panicRecovery())
	router.Use(metrics.Middleware())
	router.MaxMultipartMemory = cfg.MaxUploadSize

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})

	// Credential store
	router.POST("/set_personal_date", authHandler.Register)
	router.GET("/get_personal_date", authHandler.FindUsers)
	router.POST("/login", authHandler.Login)
	router.GET("/get_all_users", authHandler.ListUsers)
	router.GET("/get_user_id", authHandler.UserID)

	// Chat store
	router.POST("/create_chat", chatHandler.CreateChat)
	router.POST("/create_group_chat", chatHandler.CreateGroupChat)
	router.POST("/create_private_chat", chatHandler.CreatePrivateChat)
	router.POST("/add_user_to_chat", chatHandler.AddUserToChat)
	router.POST("/send_message", chatHandler.SendMessage)
	router.GET("/get_messages", chatHandler.GetMessages)
	router.POST("/mark_messages_as_read", chatHandler.MarkMessagesAsRead)
	router.GET("/get_chats", chatHandler.GetUserChats)
	router.GET("/get_user_chats", chatHandler.GetUserChats)

	// Uploads
	router.POST("/upload_image", uploadHandler.UploadImage)
	router.Static("/uploads", cfg.UploadDir)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	return router
}
