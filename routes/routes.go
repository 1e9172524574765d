package routes

import (
	"scilems/controllers"
	"scilems/middleware"
	"scilems/models"

	"github.com/gin-gonic/gin"
)

func InitializeRoutes(router *gin.Engine, s *controllers.Srv) {
	auth := controllers.NewAuthController(s)
	admin := controllers.NewAdminController(s)
	user := controllers.NewUserTransactionController(s)
	history := controllers.NewHistoryController(s)
	notifications := controllers.NewNotificationController(s)
	labs := controllers.NewLabController(s)

	api := router.Group("/api")

	api.POST("/admin/auth/login", auth.AdminLogin)
	api.POST("/users/auth/login", auth.UserLogin)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(models.RoleAdmin))
	{
		adminGroup.GET("/transactions/:status", admin.ListTransactions)
		adminGroup.PUT("/confirm/application/:transactionId", admin.ConfirmApplication)
		adminGroup.PUT("/decline/application/:transactionId", admin.DeclineApplication)
		adminGroup.PUT("/confirm/borrowed/:transactionId", admin.ConfirmBorrowed)
		adminGroup.PUT("/decline/approval/:transactionId", admin.DeclineApproval)
		adminGroup.PUT("/return/item/:transactionId", admin.ConfirmReturn)
		adminGroup.PUT("/remove/borrowed/:transactionId", admin.RemoveBorrowed)
		adminGroup.PUT("/restore/archived/:transactionId", admin.RestoreArchived)
		adminGroup.POST("/overdue/check", admin.CheckOverdue)

		adminGroup.GET("/user/count", admin.UserCount)
		adminGroup.GET("/user/counts", admin.ActiveBorrowerCount)
		adminGroup.GET("/equipment/borrowed-and-returned-count", admin.ItemTotals)
		adminGroup.GET("/monthly/borrower/counts", admin.MonthlyBorrowerCounts)

		adminGroup.GET("/lab/requests", labs.ListRequests)
		adminGroup.PUT("/lab/approve/:id", labs.Approve)
		adminGroup.PUT("/lab/decline/:id", labs.Decline)
	}

	userGroup := api.Group("/user/transactions")
	userGroup.Use(middleware.AuthMiddleware(models.RoleUser))
	{
		userGroup.GET("/cart", user.GetCart)
		userGroup.POST("/cart/add", user.AddToCart)
		userGroup.PUT("/cart/delete", user.RemoveFromCart)
		userGroup.PUT("/cart/edit", user.EditCartQuantity)
		userGroup.POST("/borrow", user.Borrow)
		userGroup.GET("", user.MyTransactions)
		userGroup.PUT("/pickup/:id", user.UpdatePickUpDate)
		userGroup.PUT("/reset/:id", user.ResetTransaction)
		userGroup.DELETE("/items/cancel/:id", user.CancelApplication)

		userGroup.POST("/lab/request", labs.CreateRequest)
		userGroup.GET("/lab/requests", labs.MyRequests)
		userGroup.DELETE("/lab/request/:id", labs.DeleteRequest)
	}

	historyGroup := api.Group("/transactions/history")
	historyGroup.Use(middleware.AuthMiddleware(models.RoleAdmin, models.RoleUser))
	{
		historyGroup.GET("/transaction/:transactionId/history", history.TransactionHistory)
		historyGroup.GET("/user/:userId/transaction-history", history.UserHistory)
		historyGroup.GET("/overall", history.Overall)
		historyGroup.GET("/overall/:transactionId", history.Details)
		historyGroup.POST("/system/snapshot", middleware.AuthMiddleware(models.RoleAdmin), history.SystemSnapshot)
	}

	notificationGroup := api.Group("/notifications")
	notificationGroup.Use(middleware.AuthMiddleware(models.RoleAdmin, models.RoleUser))
	{
		notificationGroup.GET("/user", notifications.UserNotifications)
		notificationGroup.GET("/global", notifications.GlobalNotifications)
		notificationGroup.PUT("/read/:notificationId", notifications.MarkRead)
		notificationGroup.PUT("/read-all", notifications.MarkAllRead)
	}
}
