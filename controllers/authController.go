package controllers

import (
	"errors"
	"net/http"

	"scilems/middleware"
	"scilems/models"
	"scilems/store"
	"scilems/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// account is the part of a user or admin needed to issue a token.
type account struct {
	id       string
	role     string
	password string
	profile  any
}

func (ac *AuthController) AdminLogin(c *gin.Context) {
	ac.login(c, func(username string) (*account, error) {
		a, err := ac.Repos.Users.FindAdminByUsername(c.Request.Context(), username)
		if err != nil {
			return nil, err
		}
		return &account{id: a.ID.Hex(), role: models.RoleAdmin, password: a.Password, profile: a}, nil
	})
}

func (ac *AuthController) UserLogin(c *gin.Context) {
	ac.login(c, func(username string) (*account, error) {
		u, err := ac.Repos.Users.FindUserByUsername(c.Request.Context(), username)
		if err != nil {
			return nil, err
		}
		return &account{id: u.ID.Hex(), role: models.RoleUser, password: u.Password, profile: u}, nil
	})
}

func (ac *AuthController) login(c *gin.Context, find func(string) (*account, error)) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := find(input.Username)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		ac.respondError(c, err)
		return
	}
	if err := utils.VerifyPassword(acc.password, input.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateToken(acc.id, acc.role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error while generating token"})
		return
	}
	c.SetCookie(middleware.TokenCookie, token, 3600*24, "/", "", ac.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"role":    acc.role,
		"user":    acc.profile,
	})
}
