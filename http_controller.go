package authflow

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// FlowControllerRoutes holds the route paths the controller registers.
type FlowControllerRoutes struct {
	Auth     string
	Username string
	Social   string
	Logout   string
}

// FlowControllerViews holds the template names for the three screens.
type FlowControllerViews struct {
	Auth     string
	Username string
	Home     string
}

// FlowController is the HTTP rendition of the view controller: it maps the
// current screen to one of three views and feeds form submissions into the
// sequencer. The login/sign-up mode toggle travels as a form value, is
// independent of the screen state, and resets to login on a fresh page load.
type FlowController struct {
	Debug        bool
	Logger       Logger
	Sequencer    *Sequencer
	Machine      *ScreenMachine
	Routes       *FlowControllerRoutes
	Views        *FlowControllerViews
	ErrorHandler router.ErrorHandler
}

// FlowControllerOption configures the controller.
type FlowControllerOption func(*FlowController) *FlowController

// WithFlowSequencer sets the sequencer backing the form handlers.
func WithFlowSequencer(seq *Sequencer) FlowControllerOption {
	return func(c *FlowController) *FlowController {
		c.Sequencer = seq
		return c
	}
}

// WithFlowMachine sets the screen machine the controller renders from.
func WithFlowMachine(machine *ScreenMachine) FlowControllerOption {
	return func(c *FlowController) *FlowController {
		c.Machine = machine
		return c
	}
}

// WithFlowLogger overrides the default logger.
func WithFlowLogger(logger Logger) FlowControllerOption {
	return func(c *FlowController) *FlowController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithFlowDebug toggles payload dumps on form handlers.
func WithFlowDebug(debug bool) FlowControllerOption {
	return func(c *FlowController) *FlowController {
		c.Debug = debug
		return c
	}
}

// NewFlowController builds a controller with the default routes and views.
func NewFlowController(opts ...FlowControllerOption) *FlowController {
	c := &FlowController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &FlowControllerRoutes{
			Auth:     "/auth",
			Username: "/username",
			Social:   "/auth/social/:provider",
			Logout:   "/logout",
		},
		Views: &FlowControllerViews{
			Auth:     "auth",
			Username: "username",
			Home:     "home",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sequencer == nil {
		panic("Missing Sequencer in flow controller...")
	}

	if c.Machine == nil {
		panic("Missing ScreenMachine in flow controller...")
	}

	return c
}

// RegisterFlowRoutes mounts the flow on a router.
func RegisterFlowRoutes[T any](app router.Router[T], opts ...FlowControllerOption) {
	controller := NewFlowController(opts...)

	app.Get("/", controller.ScreenShow).SetName("flow.screen")

	app.Get(controller.Routes.Auth, controller.AuthShow).SetName("flow.auth.get")
	app.Post(controller.Routes.Auth, controller.AuthPost).SetName("flow.auth.post")

	app.Get(controller.Routes.Username, controller.UsernameShow).SetName("flow.username.get")
	app.Post(controller.Routes.Username, controller.UsernamePost).SetName("flow.username.post")

	app.Get(controller.Routes.Social, controller.SocialStart).SetName("flow.social.get")

	app.Get(controller.Routes.Logout, controller.Logout).SetName("flow.logout.get")
}

// ScreenShow renders whichever of the three views the machine is on. This is
// the pure state-to-view mapping; handlers below only feed the sequencer and
// come back here.
func (c *FlowController) ScreenShow(ctx router.Context) error {
	switch c.Machine.Current() {
	case ScreenChoosingUsername:
		return ctx.Render(c.Views.Username, c.screenContext(nil))
	case ScreenLoggedIn:
		return ctx.Render(c.Views.Home, c.screenContext(nil))
	default:
		return ctx.Render(c.Views.Auth, c.screenContext(router.ViewContext{
			"is_signup": false,
		}))
	}
}

// AuthShow renders the login/sign-up form. The mode query parameter drives
// the toggle; a plain page load defaults to login.
func (c *FlowController) AuthShow(ctx router.Context) error {
	return ctx.Render(c.Views.Auth, c.screenContext(router.ViewContext{
		"is_signup": ctx.Query("mode", "") == "signup",
	}))
}

// AuthFormPayload is the combined login/sign-up form payload; Mode carries
// the toggle the submit button was in.
type AuthFormPayload struct {
	Mode     string `form:"mode" json:"mode"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
}

// Validate will run validation rules
func (p AuthFormPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Mode,
			validation.Required,
			validation.In("login", "signup"),
		),
	)
}

// AuthPost dispatches the form to the sign-up or login sequence.
func (c *FlowController) AuthPost(ctx router.Context) error {
	payload := new(AuthFormPayload)

	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("auth post bind: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": ErrorMessage(err),
		}).Status(router.StatusBadRequest).Render(c.Views.Auth, c.screenContext(router.ViewContext{
			"record":     payload,
			"is_signup":  payload.Mode == "signup",
			"validation": FormatValidationErrorToMap(err),
		}))
	}

	if c.Debug {
		fmt.Println("======= FLOW AUTH =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	isSignup := payload.Mode == "signup"

	var err error
	if isSignup {
		err = c.Sequencer.SignUp(ctx.Context(), SignUpPayload{
			Email:    payload.Email,
			Password: payload.Password,
			Name:     payload.Name,
		})
	} else {
		err = c.Sequencer.LogIn(ctx.Context(), CredentialsPayload{
			Email:    payload.Email,
			Password: payload.Password,
		})
	}

	if err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": ErrorMessage(err),
		}).Status(router.StatusBadRequest).Render(c.Views.Auth, c.screenContext(router.ViewContext{
			"record":    payload,
			"is_signup": isSignup,
		}))
	}

	if isSignup {
		return flash.WithSuccess(ctx, router.ViewContext{
			"success_message": "Sign up successful! Please log in.",
		}).Redirect("/", router.StatusSeeOther)
	}

	return ctx.Redirect("/", router.StatusSeeOther)
}

// UsernameShow renders the one-time username selection form.
func (c *FlowController) UsernameShow(ctx router.Context) error {
	if err := c.Machine.Require(ScreenChoosingUsername); err != nil {
		return ctx.Redirect("/", router.StatusSeeOther)
	}

	return ctx.Render(c.Views.Username, c.screenContext(nil))
}

// UsernamePost submits a username candidate.
func (c *FlowController) UsernamePost(ctx router.Context) error {
	payload := new(UsernamePayload)

	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("username post bind: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	if err := c.Sequencer.ChooseUsername(ctx.Context(), payload.Username); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": ErrorMessage(err),
		}).Status(router.StatusBadRequest).Render(c.Views.Username, c.screenContext(router.ViewContext{
			"record": payload,
		}))
	}

	return ctx.Redirect("/", router.StatusSeeOther)
}

// SocialStart launches a federated sign-in for the provider in the path.
func (c *FlowController) SocialStart(ctx router.Context) error {
	provider := ctx.Param("provider", "")

	if err := c.Sequencer.FederatedSignIn(ctx.Context(), provider); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": ErrorMessage(err),
		}).Status(router.StatusBadRequest).Render(c.Views.Auth, c.screenContext(router.ViewContext{
			"is_signup": false,
		}))
	}

	return ctx.Redirect("/", router.StatusSeeOther)
}

// Logout ends the session and returns to the login screen.
func (c *FlowController) Logout(ctx router.Context) error {
	if err := c.Sequencer.LogOut(ctx.Context()); err != nil {
		c.Logger.Error("logout: %v", err)
	}

	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (c *FlowController) screenContext(extra router.ViewContext) router.ViewContext {
	vc := router.ViewContext{
		"screen": c.Machine.Current(),
	}

	if account := c.Machine.CurrentAccount(); account != nil {
		vc["account"] = account
	}

	for k, v := range extra {
		vc[k] = v
	}

	return vc
}

func defaultErrHandler(ctx router.Context, err error) error {
	return ctx.Status(router.StatusBadRequest).SendString(err.Error())
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field=message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if errs, ok := err.(validation.Errors); ok {
		for field, ferr := range errs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["form"] = err.Error()
	}

	return out
}
