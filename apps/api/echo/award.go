package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/blockward/blockward/core/award"
	"github.com/blockward/blockward/core/user"
)

type awardApi struct {
	svc    award.Service
	usrSvc user.Service
}

func registerAwardAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, svc award.Service) {
	api := awardApi{svc: svc, usrSvc: usrSvc}

	// all award endpoints require auth
	ag := g.Group("/awards", jwt)

	ag.POST("", api.issue, staffMiddleware())
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/revoke", api.revoke, staffMiddleware())

	cg := ag.Group("/categories")
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory, adminMiddleware())
	cg.GET("/:id", api.retrieveCategory)
	cg.PUT("/:id", api.updateCategory, adminMiddleware())
	cg.DELETE("/:id", api.destroyCategory, adminMiddleware())

	pg := g.Group("/points", jwt)
	pg.POST("", api.awardPoints, staffMiddleware())
	pg.GET("/totals/:holderID", api.totals)
	pg.GET("/entries/:holderID", api.entries)
}

// Handlers

func (api *awardApi) issue(ctx echo.Context) error {
	var data award.NewCredential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCredential")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cred, err := api.svc.Issue(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cred)
}

func (api *awardApi) query(ctx echo.Context) error {
	filter := new(award.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []award.Credential{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// students only ever see their own credentials
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.IsTeacher) {
		filter.HolderID = claims.Subject
	}

	creds, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying credentials")
	}
	if creds == nil {
		creds = []award.Credential{}
	}
	return ctx.JSON(http.StatusOK, creds)
}

func (api *awardApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cred, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if !(claims.IsAdmin || claims.IsTeacher || cred.HolderID == claims.Subject) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, cred)
}

func (api *awardApi) revoke(ctx echo.Context) error {
	var data award.RevokeCredential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevokeCredential")
	}
	data.CredentialID = ctx.Param("id")

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cred, err := api.svc.Revoke(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cred)
}

// Categories

func (api *awardApi) createCategory(ctx echo.Context) error {
	var data award.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *awardApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []award.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *awardApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *awardApi) updateCategory(ctx echo.Context) error {
	var data award.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cat, err := api.svc.UpdateCategory(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *awardApi) destroyCategory(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Points

func (api *awardApi) awardPoints(ctx echo.Context) error {
	var data award.NewPointEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPointEntry")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entry, err := api.svc.AwardPoints(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *awardApi) totals(ctx echo.Context) error {
	holderID, err := api.scopedHolderID(ctx)
	if err != nil {
		return err
	}

	totals, err := api.svc.Totals(ctx.Request().Context(), holderID)
	if err != nil {
		return errors.Wrap(err, "getting point totals")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *awardApi) entries(ctx echo.Context) error {
	holderID, err := api.scopedHolderID(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.Entries(ctx.Request().Context(), holderID)
	if err != nil {
		return errors.Wrap(err, "querying point entries")
	}
	if entries == nil {
		entries = []award.PointEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

// scopedHolderID resolves the `holderID` path param; students may only request
// their own ledger.
func (api *awardApi) scopedHolderID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	holderID := ctx.Param("holderID")
	if !(claims.IsAdmin || claims.IsTeacher || holderID == claims.Subject) {
		return "", errHttpNotFound
	}
	return holderID, nil
}
