package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiequality "k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	"monitorplane/internal/workload"
)

// agentPort is the fixed port every collector image exposes its /health
// and /ready probes on.
const agentPort = 8090

// Manager reconciles one Secret + one Deployment per monitor into a single
// Kubernetes namespace. Unlike the multi-resource (ConfigMap/Service/
// Ingress) reconciler this is adapted from, a collector workload exposes
// no network surface of its own — it only writes samples out-of-band —
// so Secret+Deployment is the complete resource set.
type Manager struct {
	clientset kubernetes.Interface
	namespace string

	// sampleStoreURL is handed to every collector container so it knows
	// where to push the samples it gathers.
	sampleStoreURL string
}

// New builds a Manager that reconciles workloads into namespace.
func New(clientset kubernetes.Interface, namespace, sampleStoreURL string) *Manager {
	return &Manager{clientset: clientset, namespace: namespace, sampleStoreURL: sampleStoreURL}
}

// deploymentNamePrefix and secretNameSuffix fix the cluster-side naming
// convention: a workload named `monitor-<monitor_id>` and its per-monitor
// secret object named `monitor-<monitor_id>-secrets`.
const (
	deploymentNamePrefix = "monitor-"
	secretNameSuffix     = "-secrets"
)

func secretName(monitorID string) string {
	return deploymentNamePrefix + sanitize(monitorID) + secretNameSuffix
}

func deploymentName(monitorID string) string {
	return deploymentNamePrefix + sanitize(monitorID)
}

// sanitize replaces "_" with "-" so the opaque ID (e.g. "mon_abc123")
// forms a valid Kubernetes resource name segment (DNS-1123 subdomain,
// which disallows underscores).
func sanitize(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c == '_' {
			out = append(out, '-')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// Apply idempotently reconciles the Secret and Deployment for spec. It
// fetches each resource first and only writes when the desired state
// differs, so repeated calls with an unchanged Spec are no-ops against
// the API server.
func (m *Manager) Apply(ctx context.Context, spec workload.Spec) (string, error) {
	image, ok := workload.ImageFor(spec.MonitorType)
	if !ok {
		return "", workload.ErrUnknownMonitorType(spec.MonitorType)
	}

	sName := secretName(spec.MonitorID)
	dName := deploymentName(spec.MonitorID)

	if err := m.applySecret(ctx, sName, spec.Secrets); err != nil {
		return "", fmt.Errorf("k8s: applying secret: %w", err)
	}

	configJSON, err := json.Marshal(spec.Config)
	if err != nil {
		return "", fmt.Errorf("k8s: marshalling monitor config: %w", err)
	}

	if err := m.applyDeployment(ctx, dName, sName, image, spec, string(configJSON)); err != nil {
		return "", fmt.Errorf("k8s: applying deployment: %w", err)
	}

	return dName, nil
}

func (m *Manager) applySecret(ctx context.Context, name string, values map[string]string) error {
	data := map[string][]byte{}
	for k, v := range values {
		data[k] = []byte(v)
	}

	desired := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: m.namespace},
		Data:       data,
	}

	secrets := m.clientset.CoreV1().Secrets(m.namespace)
	existing, err := secrets.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err := secrets.Create(ctx, desired, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}

	if apiequality.Semantic.DeepEqual(existing.Data, data) {
		return nil
	}

	existing.Data = data
	_, err = secrets.Update(ctx, existing, metav1.UpdateOptions{})
	return err
}

func (m *Manager) applyDeployment(ctx context.Context, name, secretName, image string, spec workload.Spec, configJSON string) error {
	// Label values (unlike resource names) permit underscores, so the
	// opaque IDs go in unsanitized and stay greppable against the
	// relational rows.
	labels := map[string]string{
		"app":          "monitor",
		"monitor_id":   spec.MonitorID,
		"user_id":      spec.UserID,
		"monitor_type": spec.MonitorType,
	}
	selector := map[string]string{
		"app":        "monitor",
		"monitor_id": spec.MonitorID,
	}
	replicas := int32(1)

	desired := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: m.namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: selector},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "collector",
						Image: image,
						Env: []corev1.EnvVar{
							{Name: "MONITOR_ID", Value: spec.MonitorID},
							{Name: "CONFIG", Value: configJSON},
							{Name: "SAMPLE_STORE_URL", Value: m.sampleStoreURL},
						},
						EnvFrom: []corev1.EnvFromSource{{
							SecretRef: &corev1.SecretEnvSource{
								LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
							},
						}},
						Ports: []corev1.ContainerPort{{ContainerPort: agentPort}},
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{
								corev1.ResourceCPU:    resource.MustParse("50m"),
								corev1.ResourceMemory: resource.MustParse("64Mi"),
							},
							Limits: corev1.ResourceList{
								corev1.ResourceCPU:    resource.MustParse("100m"),
								corev1.ResourceMemory: resource.MustParse("128Mi"),
							},
						},
						LivenessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								HTTPGet: &corev1.HTTPGetAction{
									Path: "/health",
									Port: intstr.FromInt(agentPort),
								},
							},
						},
						ReadinessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								HTTPGet: &corev1.HTTPGetAction{
									Path: "/ready",
									Port: intstr.FromInt(agentPort),
								},
							},
						},
					}},
					RestartPolicy: corev1.RestartPolicyAlways,
				},
			},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxUnavailable: &intstr.IntOrString{Type: intstr.Int, IntVal: 0},
					MaxSurge:       &intstr.IntOrString{Type: intstr.Int, IntVal: 1},
				},
			},
		},
	}

	deployments := m.clientset.AppsV1().Deployments(m.namespace)
	existing, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err := deployments.Create(ctx, desired, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}

	if apiequality.Semantic.DeepEqual(existing.Spec.Template, desired.Spec.Template) &&
		apiequality.Semantic.DeepEqual(existing.Spec.Replicas, desired.Spec.Replicas) {
		return nil
	}

	existing.Spec.Template = desired.Spec.Template
	existing.Spec.Replicas = desired.Spec.Replicas
	_, err = deployments.Update(ctx, existing, metav1.UpdateOptions{})
	return err
}

// Stop deletes the Deployment and then best-effort deletes its Secret,
// tolerating either being already gone, and aggregates any other failures.
func (m *Manager) Stop(ctx context.Context, workloadID string) error {
	var errs *multierror.Error

	if err := m.clientset.AppsV1().Deployments(m.namespace).Delete(ctx, workloadID, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		errs = multierror.Append(errs, fmt.Errorf("deleting deployment %s: %w", workloadID, err))
	}

	secretID := deploymentToSecretName(workloadID)
	if err := m.clientset.CoreV1().Secrets(m.namespace).Delete(ctx, secretID, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		errs = multierror.Append(errs, fmt.Errorf("deleting secret %s: %w", secretID, err))
	}

	return errs.ErrorOrNil()
}

// deploymentToSecretName derives a workload's secret object name from its
// deployment name. workloadID is always deploymentName(monitorID), so
// appending secretNameSuffix reproduces secretName(monitorID) without the
// caller needing the original monitor ID.
func deploymentToSecretName(deploymentName string) string {
	return deploymentName + secretNameSuffix
}

// hasFailureCondition reports whether the Deployment reports a
// ReplicaFailure or a False Progressing condition — the signal the
// reconciler uses to move a monitor to "error" rather than leaving it in
// "starting" forever.
func hasFailureCondition(conditions []appsv1.DeploymentCondition) bool {
	for _, c := range conditions {
		if c.Type == appsv1.DeploymentReplicaFailure && c.Status == corev1.ConditionTrue {
			return true
		}
		if c.Type == appsv1.DeploymentProgressing && c.Status == corev1.ConditionFalse {
			return true
		}
	}
	return false
}

// Status derives a workload.Status from the Deployment's observed state.
func (m *Manager) Status(ctx context.Context, workloadID string) (workload.Status, error) {
	dep, err := m.clientset.AppsV1().Deployments(m.namespace).Get(ctx, workloadID, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return workload.Status{WorkloadID: workloadID, Phase: "not_found"}, nil
	}
	if err != nil {
		return workload.Status{}, fmt.Errorf("k8s: fetching deployment status: %w", err)
	}

	// Phase is one of {running, starting, not_found, error}; running iff
	// ready == desired > 0.
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	phase := "starting"
	if dep.Status.ReadyReplicas > 0 && dep.Status.ReadyReplicas == desired {
		phase = "running"
	} else if hasFailureCondition(dep.Status.Conditions) {
		phase = "error"
	}

	var conditions []string
	for _, c := range dep.Status.Conditions {
		conditions = append(conditions, fmt.Sprintf("%s=%s: %s", c.Type, c.Status, c.Reason))
	}

	return workload.Status{
		WorkloadID:    workloadID,
		Phase:         phase,
		ReadyReplicas: dep.Status.ReadyReplicas,
		TotalReplicas: dep.Status.Replicas,
		Conditions:    conditions,
	}, nil
}
