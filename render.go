package gatehouse

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"gatehouse/views"
)

// signupData is passed to both the built-in signup page and custom signup
// views. Error messages arrive raw and are escaped by the template engine,
// exactly once.
type signupData struct {
	Errors []string
}

var builtinLoginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Log In</title></head>
<body>
  <form action="/login" method="post">
    <div id="basic_login_field">
      <label for="login">Login: </label>
      <input id="login" type="text" name="login"><br>
    </div>
    <div id="basic_password_field">
      <label for="password">Password: </label>
      <input id="password" type="password" name="password"><br>
    </div>
    <div id="basic_login_button">
      <input type="submit" value="Login">
    </div>
  </form>
  <p>OpenID:</p>
  <form action="/openid/initiate" method="post">
    <div id="openid_login_field">
      <label for="openid_identifier">URL: </label>
      <input id="openid_identifier" type="text" name="openid_identifier"><br>
    </div>
    <div id="openid_login_button">
      <input type="submit" value="Login">
    </div>
  </form>
</body>
</html>
`))

var builtinSignupPage = template.Must(template.New("signup").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign Up</title></head>
<body>
  {{range .Errors}}<p class="error">{{.}}</p>
  {{end}}<form action="/signup" method="post">
    <div id="basic_login_field">
      <label for="login">Login: </label>
      <input id="login" type="text" name="login"><br>
    </div>
    <div id="basic_password_field">
      <label for="password">Password: </label>
      <input id="password" type="password" name="password"><br>
    </div>
    <div id="basic_signup_button">
      <input type="submit" value="Sign Up">
    </div>
  </form>
</body>
</html>
`))

// viewRenderer tries the host application's custom view first and falls back
// to the built-in page, including when a custom view exists but fails to
// render: a broken template must not take the login flow down.
type viewRenderer struct {
	resolver views.Resolver
	logger   *slog.Logger
}

func (v viewRenderer) render(w http.ResponseWriter, r *http.Request, name string, data any, builtin *template.Template) {
	var buf bytes.Buffer
	found, err := v.resolver.Render(&buf, name, data)
	if err != nil {
		v.logger.ErrorContext(r.Context(), "custom view failed, using built-in page",
			"view", name,
			"error", err.Error(),
		)
	}
	if !found || err != nil {
		buf.Reset()
		if err := builtin.Execute(&buf, data); err != nil {
			v.logger.ErrorContext(r.Context(), "built-in view failed", "view", name, "error", err.Error())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
