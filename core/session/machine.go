package session

import "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"

// State of a guarded page view.
type State int

const (
	Loading State = iota
	Authorized
	UnauthorizedNoSession
	UnauthorizedWrongRole
	LoginRedirect
)

var stateNames = map[State]string{
	Loading:               "loading",
	Authorized:            "authorized",
	UnauthorizedNoSession: "unauthorized_no_session",
	UnauthorizedWrongRole: "unauthorized_wrong_role",
	LoginRedirect:         "login_redirect",
}

func (s State) String() string { return stateNames[s] }

type Event int

const (
	EventIdentityAuthorized Event = iota
	EventIdentityWrongRole
	EventNoIdentity
	EventRefreshSucceeded
	EventRefreshFailed
	EventLoggedOut
)

// Effect is what the caller must do after a transition.
type Effect int

const (
	None Effect = iota
	RenderPlaceholder
	RenderView
	AttemptRefresh
	Reload
	WarnAndLogout
	RedirectLogin
)

type transition struct {
	state State
	event Event
}

type outcome struct {
	state  State
	effect Effect
}

var transitions = map[transition]outcome{
	{Loading, EventIdentityAuthorized}:             {Authorized, RenderView},
	{Loading, EventIdentityWrongRole}:              {UnauthorizedWrongRole, WarnAndLogout},
	{Loading, EventNoIdentity}:                     {UnauthorizedNoSession, AttemptRefresh},
	{UnauthorizedNoSession, EventRefreshSucceeded}: {Loading, Reload},
	{UnauthorizedNoSession, EventRefreshFailed}:    {LoginRedirect, RedirectLogin},
	{UnauthorizedWrongRole, EventLoggedOut}:        {LoginRedirect, RedirectLogin},
}

// Start returns the initial state of a guarded view.
func Start() (State, Effect) {
	return Loading, RenderPlaceholder
}

// Next is the guard transition function. Events that do not apply to the current
// state leave it unchanged; Loading keeps rendering the placeholder.
// Authorized and LoginRedirect are terminal.
func Next(state State, event Event) (State, Effect) {
	if out, ok := transitions[transition{state, event}]; ok {
		return out.state, out.effect
	}
	if state == Loading {
		return Loading, RenderPlaceholder
	}
	return state, None
}

// Classify turns a resolved identity into a guard event. An empty allowed list
// authorizes any signed-in user.
func Classify(identity *Identity, allowedRoles []string) Event {
	switch {
	case identity == nil:
		return EventNoIdentity
	case len(allowedRoles) == 0, core.StringIn(identity.Role, allowedRoles...):
		return EventIdentityAuthorized
	default:
		return EventIdentityWrongRole
	}
}

type resolveState int

const (
	stateFetching resolveState = iota
	stateRefreshing
	stateRetrying
	stateIdentified
	stateSignedOut
	stateRedirect
)

type fetchOutcome int

const (
	outcomeOK fetchOutcome = iota
	outcomeUnauthorized
	outcomeFailed
)

type resolveAction int

const (
	actionNone resolveAction = iota
	actionFetch
	actionRefresh
)

// resolveStep drives identity resolution: one fetch, at most one refresh, then at
// most one retried fetch.
func resolveStep(state resolveState, out fetchOutcome) (resolveState, resolveAction) {
	switch state {
	case stateFetching:
		switch out {
		case outcomeOK:
			return stateIdentified, actionNone
		case outcomeUnauthorized:
			return stateRefreshing, actionRefresh
		}
		return stateSignedOut, actionNone
	case stateRefreshing:
		if out == outcomeOK {
			return stateRetrying, actionFetch
		}
		return stateRedirect, actionNone
	case stateRetrying:
		if out == outcomeOK {
			return stateIdentified, actionNone
		}
		return stateSignedOut, actionNone
	}
	return state, actionNone
}
