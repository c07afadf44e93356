package engine

import (
	"context"
	"errors"

	"github.com/dgnsrekt/pdown/internal/share"
)

// suppressUIScript hides tooltips, which intercept clicks while crawling, and
// opts out of the desktop notification prompt.
const suppressUIScript = `(() => {
	const style = document.createElement('style');
	style.textContent = '.tooltip, [role=tooltip] { display: none !important; }';
	document.head.appendChild(style);
	localStorage.setItem('dont-ask-desktop-notification', 'true');
	return true;
})()`

// LoadShare navigates page to the share and passes a password challenge when
// one appears. It returns once the share content is ready to inspect.
func (e *Engine) LoadShare(ctx context.Context, page Page, t share.Target) error {
	logger := e.logger.With("share_id", t.ID)

	logger.Debug("navigating to share", "url", t.URL)
	navCtx, cancel := context.WithTimeout(ctx, e.timings.Navigation)
	err := page.Navigate(navCtx, t.URL)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return shareError(CodeTimeout, t.ID, "navigation timed out", err)
		}
		return shareError(CodeNavigationFailed, t.ID, "navigation failed", err)
	}
	if landed, err := page.URL(ctx); err == nil {
		logger.Debug("navigation settled", "url", landed)
	}

	if err := page.Evaluate(ctx, suppressUIScript, nil); err != nil {
		return shareError(CodeEvalFailure, t.ID, "page setup failed", err)
	}

	logger.Debug("locating password input")
	switch race(ctx, page, e.timings.Challenge, e.loc.PasswordInput, e.loc.FileShareProof, e.loc.TableRows) {
	case 0:
	case -1:
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("no challenge or content detected, proceeding")
		return nil
	default:
		if t.Password != "" {
			logger.Debug("no password input found, ignoring supplied password")
		}
		return nil
	}

	if t.Password == "" {
		return shareError(CodePermissionDenied, t.ID, "permission denied: no password provided", nil)
	}

	logger.Debug("password input found, entering password")
	if err := page.Submit(ctx, e.loc.PasswordInput, t.Password); err != nil {
		return shareError(CodeEvalFailure, t.ID, "password entry failed", err)
	}

	if race(ctx, page, e.timings.Challenge, e.loc.IncorrectPasswordPopup, e.loc.TableRows, e.loc.FileShareProof) == 0 {
		return shareError(CodeInvalidPassword, t.ID, "permission denied: incorrect password", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Debug("share unlocked")
	return nil
}
