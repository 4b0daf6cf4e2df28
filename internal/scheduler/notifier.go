package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-mail/mail"
	"github.com/goccy/go-json"

	"tickflow/pkg/kafka"
	"tickflow/pkg/logger"
)

// 通知器：任务失败/出信号时按配置推送。日志通道永远在，
// 邮件、webhook、kafka按配置挂载。通知失败只记日志，绝不影响调度

type NotifyConfig struct {
	EmailEnabled bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	Sender       string
	Recipients   []string

	WebhookURL string
}

type Notifier struct {
	cfg      NotifyConfig
	producer kafka.ProducerService // 可为nil
	client   *http.Client
}

func NewNotifier(cfg NotifyConfig, producer kafka.ProducerService) *Notifier {
	return &Notifier{
		cfg:      cfg,
		producer: producer,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// JobFailed 策略运行失败。失败隔离在单个任务内，通知后继续调度
func (n *Notifier) JobFailed(ctx context.Context, job *Job, now time.Time, runErr error) {
	logger.Error("job failed",
		logger.Pair("job", job.Name),
		logger.Pair("account", job.Account),
		logger.Pair("market", job.Market),
		logger.Pair("time", now),
		logger.Pair("error", runErr.Error()))
	if !job.NotifyOnFailure {
		return
	}
	subject := fmt.Sprintf("[tickflow] job %s failed", job.Name)
	body := fmt.Sprintf("job %s (account=%s market=%s) failed at %s: %v",
		job.Name, job.Account, job.Market, now.UTC().Format(time.RFC3339), runErr)
	n.deliver(ctx, subject, body, kafka.Event{
		Type:      "job_failed",
		JobName:   job.Name,
		Account:   job.Account,
		Market:    job.Market,
		Detail:    map[string]interface{}{"error": runErr.Error()},
		Timestamp: now.UTC(),
	})
}

// SignalsCreated 策略产出信号
func (n *Notifier) SignalsCreated(ctx context.Context, job *Job, count int, now time.Time) {
	logger.Info("signals created",
		logger.Pair("job", job.Name),
		logger.Pair("count", count),
		logger.Pair("time", now))
	if !job.NotifyOnSignal || count == 0 {
		return
	}
	subject := fmt.Sprintf("[tickflow] job %s produced %d signal(s)", job.Name, count)
	body := fmt.Sprintf("job %s (account=%s market=%s) produced %d signal(s) at %s",
		job.Name, job.Account, job.Market, count, now.UTC().Format(time.RFC3339))
	n.deliver(ctx, subject, body, kafka.Event{
		Type:      "signals_created",
		JobName:   job.Name,
		Account:   job.Account,
		Market:    job.Market,
		Detail:    map[string]interface{}{"count": count},
		Timestamp: now.UTC(),
	})
}

// ExecutionDone 市场执行完成，有失败才外发
func (n *Notifier) ExecutionDone(ctx context.Context, report *ExecutionReport, now time.Time) {
	event := kafka.Event{
		Type:      "execution_done",
		Market:    report.Market,
		Detail:    map[string]interface{}{"pending": report.Pending, "executed": report.Executed, "failed": report.Failed},
		Timestamp: now.UTC(),
	}
	if n.producer != nil {
		if err := n.producer.Produce(ctx, report.Market, event); err != nil {
			logger.Warnf("notify kafka: %v", err)
		}
	}
	if report.Failed == 0 {
		return
	}
	subject := fmt.Sprintf("[tickflow] %s execution: %d failed", report.Market, report.Failed)
	body := fmt.Sprintf("market %s at %s: pending=%d executed=%d failed=%d\nerrors: %v",
		report.Market, now.UTC().Format(time.RFC3339), report.Pending, report.Executed, report.Failed, report.Errors)
	n.sendEmail(subject, body)
	n.postWebhook(ctx, map[string]interface{}{"subject": subject, "report": report})
}

func (n *Notifier) deliver(ctx context.Context, subject, body string, event kafka.Event) {
	n.sendEmail(subject, body)
	n.postWebhook(ctx, map[string]interface{}{"subject": subject, "body": body})
	if n.producer != nil {
		key := event.JobName
		if key == "" {
			key = event.Market
		}
		if err := n.producer.Produce(ctx, key, event); err != nil {
			logger.Warnf("notify kafka: %v", err)
		}
	}
}

func (n *Notifier) sendEmail(subject, body string) {
	if !n.cfg.EmailEnabled || len(n.cfg.Recipients) == 0 {
		return
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", n.cfg.Sender)
	msg.SetHeader("To", n.cfg.Recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	dialer := mail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPassword)
	if err := dialer.DialAndSend(msg); err != nil {
		logger.Warnf("notify email: %v", err)
	}
}

func (n *Notifier) postWebhook(ctx context.Context, payload interface{}) {
	if n.cfg.WebhookURL == "" {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warnf("notify webhook marshal: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(raw))
	if err != nil {
		logger.Warnf("notify webhook: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warnf("notify webhook: %v", err)
		return
	}
	resp.Body.Close()
}
